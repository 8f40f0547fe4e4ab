package triage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/store"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/followup"
	"triage_server/core/service/reply"
	"triage_server/core/service/ticket"
)

type sentMessage struct {
	to, body string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeMessenger) Send(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

func (f *fakeMessenger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePolisher struct {
	answer  string
	err     error
	calls   int
	history []domain.ChatMessage
}

func (f *fakePolisher) Polish(ctx context.Context, draft string, history []domain.ChatMessage, signals domain.SignalBundle) (string, error) {
	f.calls++
	f.history = history
	return f.answer, f.err
}

type fakeArchive struct {
	records []*out.HandoffRecord
}

func (f *fakeArchive) ArchiveHandoff(ctx context.Context, record *out.HandoffRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeArchive) ListHandoffs(ctx context.Context, user string, limit int) ([]*out.HandoffRecord, error) {
	return f.records, nil
}

type harness struct {
	engine    *Engine
	store     *store.Store
	scheduler *followup.Scheduler
	tickets   *ticket.Service
	messenger *fakeMessenger
	archive   *fakeArchive
	clock     *time.Time
}

func newHarness(t *testing.T, polisher out.ReplyPolisher) *harness {
	t.Helper()

	now := time.UnixMilli(1_700_000_000_000)
	clock := &now
	nowFn := func() time.Time { return *clock }

	st := store.New(store.NewMemoryBackend(), nil, zerolog.Nop())
	sched := followup.NewScheduler(st, nil, zerolog.Nop()).WithClock(nowFn)
	tickets := ticket.NewService(persistence.NewMemoryTicketAdapter(), 70)
	messenger := &fakeMessenger{}
	archive := &fakeArchive{}

	engine := NewEngine(Deps{
		Store:     st,
		Renderer:  reply.NewRenderer(reply.StyleFormal, reply.Workshop{Name: "Matic Center"}),
		FollowUps: sched,
		Messenger: messenger,
		Polisher:  polisher,
		Tickets:   tickets,
		Archive:   archive,
	}, &Config{
		FollowUpEnabled: true,
		Stage1Delay:     time.Hour,
		HandoffCooldown: 30 * time.Minute,
		Operators:       []string{"+62800"},
	}, zerolog.Nop()).WithClock(nowFn)

	return &harness{
		engine:    engine,
		store:     st,
		scheduler: sched,
		tickets:   tickets,
		messenger: messenger,
		archive:   archive,
		clock:     clock,
	}
}

func (h *harness) advance(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

const premiumStuck = "mobil saya land cruiser, pas panas jadi gak bisa jalan"

func TestHandleInboundPremiumEmergency(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.engine.HandleInbound(ctx, premiumStuck, "whatsapp:+62 811-2233")
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}

	if res.UserID != "+628112233" {
		t.Errorf("UserID = %q, want +628112233", res.UserID)
	}
	if res.ReplyTemplateID != domain.TemplatePremiumEmergency || !res.Handoff || !res.HandoffNotified {
		t.Errorf("result = %s handoff=%v notified=%v", res.ReplyTemplateID, res.Handoff, res.HandoffNotified)
	}
	if res.Lead != domain.LeadA {
		t.Errorf("Lead = %s, want A", res.Lead)
	}
	if res.TicketID == "" {
		t.Error("TicketID is empty")
	}

	if h.messenger.count() != 1 || h.messenger.sent[0].to != "+62800" {
		t.Fatalf("operator messages = %+v", h.messenger.sent)
	}
	if !strings.Contains(h.messenger.sent[0].body, "rule: premium_emergency") {
		t.Errorf("operator message missing summary:\n%s", h.messenger.sent[0].body)
	}

	tickets, _ := h.tickets.List(ctx, nil)
	if len(tickets) != 1 || tickets[0].Type != domain.TicketEmergency || tickets[0].Status != domain.TicketClaimed {
		t.Errorf("tickets = %+v", tickets)
	}

	if len(h.archive.records) != 1 || len(h.archive.records[0].History) != 2 {
		t.Errorf("archive records = %+v", h.archive.records)
	}

	meta := h.store.GetMeta(ctx, res.UserID)
	if meta.TurnCount != 1 || meta.HandoffCount != 1 || meta.LastRule != domain.RulePremiumEmergency {
		t.Errorf("meta = %+v", meta)
	}
	if meta.LastSignals == nil || meta.LastSignals.VehicleTier != domain.VehiclePremium {
		t.Errorf("meta.LastSignals = %+v", meta.LastSignals)
	}

	if q := h.scheduler.GetFollowQueue(ctx, res.UserID); len(q) != 0 {
		t.Errorf("follow-ups scheduled on handoff: %+v", q)
	}
}

func TestHandleInboundSchedulesFollowUp(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.engine.HandleInbound(ctx, "avanza saya bunyi aneh di kaki kaki", "+62812")
	if err != nil {
		t.Fatal(err)
	}
	if res.Handoff || res.ReplyTemplateID != domain.TemplateTriageStandard {
		t.Errorf("result = %s handoff=%v", res.ReplyTemplateID, res.Handoff)
	}

	history := h.store.GetHistory(ctx, "+62812")
	if len(history) != 2 || history[0].Role != domain.RoleUser || history[1].Role != domain.RoleAssistant {
		t.Fatalf("history = %+v", history)
	}
	if history[1].Text != res.ReplyText {
		t.Errorf("stored reply differs from returned reply")
	}

	queue := h.scheduler.GetFollowQueue(ctx, "+62812")
	if len(queue) != 1 || queue[0].Kind != domain.FollowUpStage1 {
		t.Fatalf("queue = %+v", queue)
	}
	if want := h.clock.Add(time.Hour).UnixMilli(); queue[0].DueAt != want {
		t.Errorf("DueAt = %d, want %d", queue[0].DueAt, want)
	}

	// A second message does not duplicate the pending STAGE1.
	if _, err := h.engine.HandleInbound(ctx, "tahun 2015", "+62812"); err != nil {
		t.Fatal(err)
	}
	if queue := h.scheduler.GetFollowQueue(ctx, "+62812"); len(queue) != 1 {
		t.Errorf("len(queue) = %d after second message, want 1", len(queue))
	}

	if users := h.store.GetUsers(ctx); len(users) != 1 || users[0] != "+62812" {
		t.Errorf("users = %v", users)
	}
}

func TestHandoffCooldown(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.HandleInbound(ctx, premiumStuck, "+62811"); err != nil {
		t.Fatal(err)
	}

	h.advance(10 * time.Minute)
	res, _ := h.engine.HandleInbound(ctx, premiumStuck, "+62811")
	if !res.Handoff || res.HandoffNotified {
		t.Errorf("inside cooldown: handoff=%v notified=%v, want true/false", res.Handoff, res.HandoffNotified)
	}
	if res.Summary == "" {
		t.Error("summary missing inside cooldown")
	}
	if h.messenger.count() != 1 {
		t.Errorf("operator messages = %d, want 1", h.messenger.count())
	}

	h.advance(25 * time.Minute)
	res, _ = h.engine.HandleInbound(ctx, premiumStuck, "+62811")
	if !res.HandoffNotified {
		t.Error("after cooldown: HandoffNotified = false")
	}
	if h.messenger.count() != 2 {
		t.Errorf("operator messages = %d, want 2", h.messenger.count())
	}

	meta := h.store.GetMeta(ctx, "+62811")
	if meta.TurnCount != 3 || meta.HandoffCount != 2 {
		t.Errorf("meta turns/handoffs = %d/%d, want 3/2", meta.TurnCount, meta.HandoffCount)
	}
}

func TestPolisherOnlyForTriageTemplates(t *testing.T) {
	p := &fakePolisher{answer: "Halo! Boleh info tahun mobilnya?"}
	h := newHarness(t, p)
	ctx := context.Background()

	res, _ := h.engine.HandleInbound(ctx, "avanza saya bunyi aneh", "+62813")
	if res.ReplyText != p.answer {
		t.Errorf("ReplyText = %q, want polished text", res.ReplyText)
	}
	if p.calls != 1 || len(p.history) != 1 || p.history[0].Role != domain.RoleUser {
		t.Errorf("polisher calls=%d history=%+v", p.calls, p.history)
	}

	res, _ = h.engine.HandleInbound(ctx, "jadwal", "+62813")
	if p.calls != 1 {
		t.Errorf("polisher called for %s", res.ReplyTemplateID)
	}
}

func TestPolisherFailureFallsBackToTemplate(t *testing.T) {
	for _, p := range []*fakePolisher{
		{err: errors.New("timeout")},
		{answer: "   "},
	} {
		h := newHarness(t, p)
		res, err := h.engine.HandleInbound(context.Background(), "avanza saya bunyi aneh", "+62814")
		if err != nil {
			t.Fatal(err)
		}
		want := reply.NewRenderer(reply.StyleFormal, reply.Workshop{Name: "Matic Center"}).Render(domain.TemplateTriageStandard)
		if res.ReplyText != want {
			t.Errorf("ReplyText = %q, want rendered template", res.ReplyText)
		}
	}
}

func TestHandleInboundEmptySender(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.engine.HandleInbound(context.Background(), "halo", "whatsapp:"); !errors.Is(err, ErrEmptySender) {
		t.Errorf("error = %v, want ErrEmptySender", err)
	}
}

func TestHandleInboundSerializesPerUser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.engine.HandleInbound(ctx, "mobil saya bunyi", "+62815")
		}()
	}
	wg.Wait()

	if meta := h.store.GetMeta(ctx, "+62815"); meta.TurnCount != 8 {
		t.Errorf("TurnCount = %d, want 8", meta.TurnCount)
	}
	if history := h.store.GetHistory(ctx, "+62815"); len(history) != domain.DefaultHistoryLimit {
		t.Errorf("len(history) = %d, want %d", len(history), domain.DefaultHistoryLimit)
	}
	if n := h.engine.Locks().Len(); n != 0 {
		t.Errorf("locks held after turns = %d", n)
	}
}

func TestSimulateDoesNotPersist(t *testing.T) {
	h := newHarness(t, nil)
	r := h.engine.Simulate("jadwal")
	if r.Template != domain.TemplateBooking {
		t.Errorf("Template = %s, want BOOKING", r.Template)
	}
	if users := h.store.GetUsers(context.Background()); len(users) != 0 {
		t.Errorf("Simulate persisted users: %v", users)
	}
}

func TestBuildSummary(t *testing.T) {
	route := domain.RouteResult{
		Template: domain.TemplatePremiumEmergency,
		Handoff:  true,
		Meta: domain.RouteMeta{
			Signals: domain.SignalBundle{
				VehicleTier: domain.VehiclePremium,
				Symptoms:    domain.Symptoms{HotNoGo: true, NoMove: true},
				Urgency:     9,
				Seriousness: 50,
			},
			Lead:      domain.LeadA,
			LeadScore: 73,
			Rule:      domain.RulePremiumEmergency,
		},
	}

	got := BuildSummary("+62811", "land cruiser\n  mogok", route)
	want := strings.Join([]string{
		"user: +62811",
		"lead: A (73)",
		"vehicle: PREMIUM",
		"urgency: 9/10",
		"seriousness: 50/100",
		"symptoms: hot_no_go, no_move",
		"intents: -",
		"rule: premium_emergency",
		"template: PREMIUM_EMERGENCY",
		"message: land cruiser mogok",
	}, "\n")
	if got != want {
		t.Errorf("BuildSummary() =\n%s\nwant\n%s", got, want)
	}
}
