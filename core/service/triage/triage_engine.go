// Package triage runs one inbound customer message end to end: persistence, signal
// extraction, routing, rendering, escalation and follow-up scheduling.
package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/core/service/reply"
	"triage_server/core/service/routing"
	"triage_server/core/service/signal"
	"triage_server/core/service/ticket"
	"triage_server/pkg/keylock"
)

var _ in.TriageUseCase = (*Engine)(nil)

// ErrEmptySender is returned when the sender address has no usable identity.
var ErrEmptySender = errors.New("sender identity is empty")

// Config holds the engine tunables.
type Config struct {
	FollowUpEnabled bool
	Stage1Delay     time.Duration
	HandoffCooldown time.Duration
	// Operators receive the handoff summary over WhatsApp.
	Operators []string
}

// Deps are the engine collaborators. Store and Renderer are required; the rest are
// optional and skipped when nil.
type Deps struct {
	Store     out.ConversationStore
	Renderer  *reply.Renderer
	FollowUps in.FollowUpUseCase
	Messenger out.ReplyMessenger
	Polisher  out.ReplyPolisher
	Tickets   *ticket.Service
	Archive   out.TranscriptArchive
	Locks     *keylock.KeyLock
}

// Engine implements in.TriageUseCase.
type Engine struct {
	store     out.ConversationStore
	renderer  *reply.Renderer
	followUps in.FollowUpUseCase
	messenger out.ReplyMessenger
	polisher  out.ReplyPolisher
	tickets   *ticket.Service
	archive   out.TranscriptArchive
	locks     *keylock.KeyLock

	cfg Config
	now func() time.Time
	log zerolog.Logger
}

// NewEngine creates an engine. A nil cfg disables follow-ups and the handoff cooldown.
func NewEngine(deps Deps, cfg *Config, log zerolog.Logger) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	locks := deps.Locks
	if locks == nil {
		locks = keylock.New()
	}
	return &Engine{
		store:     deps.Store,
		renderer:  deps.Renderer,
		followUps: deps.FollowUps,
		messenger: deps.Messenger,
		polisher:  deps.Polisher,
		tickets:   deps.Tickets,
		archive:   deps.Archive,
		locks:     locks,
		cfg:       *cfg,
		now:       time.Now,
		log:       log.With().Str("component", "triage_engine").Logger(),
	}
}

// WithClock overrides the time source (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Locks exposes the per-user lock so the follow-up dispatcher serializes with inbound turns.
func (e *Engine) Locks() *keylock.KeyLock {
	return e.locks
}

// Simulate runs extraction and routing only.
func (e *Engine) Simulate(text string) *domain.RouteResult {
	r := routing.Assess(text)
	return &r
}

// HandleInbound processes one customer message. Storage and transport failures are
// logged and never fail the turn; the only error is an unusable sender.
func (e *Engine) HandleInbound(ctx context.Context, text, sender string) (*in.TurnResult, error) {
	user := domain.NormalizeIdentity(sender)
	if user == "" {
		return nil, ErrEmptySender
	}

	unlock := e.locks.Lock(user)
	defer unlock()

	now := e.now()
	log := e.log.With().Str("user", user).Logger()

	if err := e.store.AddUser(ctx, user); err != nil {
		log.Warn().Err(err).Msg("register user failed")
	}
	if err := e.store.AddMessage(ctx, user, domain.NewChatMessage(domain.RoleUser, text, now)); err != nil {
		log.Warn().Err(err).Msg("append inbound message failed")
	}

	signals := signal.Extract(text)
	route := routing.Route(text, signals)

	prev := e.store.GetMeta(ctx, user)
	meta := domain.ConversationMeta{
		LastSignals:   &signals,
		LeadTier:      route.Meta.Lead,
		LeadScore:     route.Meta.LeadScore,
		LastTemplate:  route.Template,
		LastRule:      route.Meta.Rule,
		LastHandoff:   route.Handoff,
		TurnCount:     prev.TurnCount + 1,
		LastInboundAt: now.UnixMilli(),
		HandoffCount:  prev.HandoffCount,
		LastHandoffAt: prev.LastHandoffAt,
	}

	replyText := e.render(ctx, user, route, signals, log)
	if err := e.store.AddMessage(ctx, user, domain.NewChatMessage(domain.RoleAssistant, replyText, e.now())); err != nil {
		log.Warn().Err(err).Msg("append reply message failed")
	}

	result := &in.TurnResult{
		UserID:          user,
		ReplyTemplateID: route.Template,
		ReplyText:       replyText,
		Handoff:         route.Handoff,
		Lead:            route.Meta.Lead,
		Signals:         signals,
		Rule:            route.Meta.Rule,
	}

	if route.Handoff {
		result.Summary = BuildSummary(user, text, route)
		if e.handoffCoolingDown(prev, now) {
			log.Debug().Msg("handoff inside cooldown, operators not notified again")
		} else {
			meta.HandoffCount++
			meta.LastHandoffAt = now.UnixMilli()
			result.HandoffNotified = true
			result.TicketID = e.escalate(ctx, user, route, result.Summary, log)
		}
	}

	if err := e.store.SetMeta(ctx, user, meta); err != nil {
		log.Warn().Err(err).Msg("write meta failed")
	}

	if e.cfg.FollowUpEnabled && !route.Handoff && e.followUps != nil {
		if _, err := e.followUps.ScheduleFollowUp(ctx, user, now.Add(e.cfg.Stage1Delay), domain.FollowUpStage1); err != nil {
			log.Warn().Err(err).Msg("schedule follow-up failed")
		}
	}

	log.Info().
		Str("rule", route.Meta.Rule).
		Str("template", string(route.Template)).
		Str("lead", string(route.Meta.Lead)).
		Bool("handoff", route.Handoff).
		Msg("inbound handled")

	return result, nil
}

// render produces the reply text. Generic triage replies may be polished by the LLM;
// any polisher failure keeps the rendered template.
func (e *Engine) render(ctx context.Context, user string, route domain.RouteResult, signals domain.SignalBundle, log zerolog.Logger) string {
	draft := e.renderer.Render(route.Template)
	if e.polisher == nil || !route.Template.IsTriage() {
		return draft
	}

	polished, err := e.polisher.Polish(ctx, draft, e.store.GetHistory(ctx, user), signals)
	if err != nil {
		log.Warn().Err(err).Msg("polish failed, using template")
		return draft
	}
	if strings.TrimSpace(polished) == "" {
		return draft
	}
	return polished
}

func (e *Engine) handoffCoolingDown(prev domain.ConversationMeta, now time.Time) bool {
	if e.cfg.HandoffCooldown <= 0 || prev.LastHandoffAt == 0 {
		return false
	}
	return now.UnixMilli()-prev.LastHandoffAt < e.cfg.HandoffCooldown.Milliseconds()
}

// escalate notifies operators, opens a ticket and archives the transcript. It returns
// the ticket id, or "" when no ticket was created.
func (e *Engine) escalate(ctx context.Context, user string, route domain.RouteResult, summary string, log zerolog.Logger) string {
	if e.messenger != nil {
		body := "🚨 Handoff\n" + summary
		for _, op := range e.cfg.Operators {
			if err := e.messenger.Send(ctx, op, body); err != nil {
				log.Warn().Err(err).Str("operator", op).Msg("operator notification failed")
			}
		}
	}

	var ticketID string
	if e.tickets != nil {
		t, err := e.tickets.Open(ctx, user, route, summary)
		if err != nil {
			log.Warn().Err(err).Msg("open ticket failed")
		} else {
			ticketID = t.ID.String()
			log.Info().Str("ticket_id", ticketID).Str("type", string(t.Type)).Str("status", string(t.Status)).Msg("ticket opened")
		}
	}

	if e.archive != nil {
		record := &out.HandoffRecord{
			UserID:    user,
			TicketID:  ticketID,
			Rule:      route.Meta.Rule,
			Template:  route.Template,
			Lead:      route.Meta.Lead,
			Summary:   summary,
			Signals:   route.Meta.Signals,
			History:   e.store.GetHistory(ctx, user),
			CreatedAt: e.now().UnixMilli(),
		}
		if err := e.archive.ArchiveHandoff(ctx, record); err != nil {
			log.Warn().Err(err).Msg("archive handoff failed")
		}
	}

	return ticketID
}
