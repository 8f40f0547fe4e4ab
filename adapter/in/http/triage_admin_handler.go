package http

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"triage_server/adapter/in/worker"
	"triage_server/adapter/out/persistence"
	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/core/service/routing"
	"triage_server/core/service/ticket"
	"triage_server/infra/middleware"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"
)

// FollowUpDispatcher triggers an immediate follow-up scan.
type FollowUpDispatcher interface {
	DispatchDue(ctx context.Context) (worker.DispatchResult, error)
}

// StatsFunc returns one section of /admin/stats.
type StatsFunc func() any

// AdminDeps are the admin API collaborators. Dispatcher and Archive are optional.
type AdminDeps struct {
	Store      out.ConversationStore
	Triage     in.TriageUseCase
	FollowUps  in.FollowUpUseCase
	Dispatcher FollowUpDispatcher
	Tickets    *ticket.Service
	Archive    out.TranscriptArchive
	Stats      map[string]StatsFunc
}

// AdminHandler serves the operator API.
type AdminHandler struct {
	deps AdminDeps
	now  func() time.Time
}

func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{deps: deps, now: time.Now}
}

// Register mounts /admin behind auth.
func (h *AdminHandler) Register(router fiber.Router, auth fiber.Handler) {
	admin := router.Group("/admin", auth)

	// Conversations
	admin.Get("/users", h.ListUsers)
	admin.Get("/users/:id/history", h.GetHistory)
	admin.Get("/users/:id/meta", h.GetMeta)
	admin.Get("/users/:id/handoffs", h.ListHandoffs)

	// Follow-ups
	admin.Get("/users/:id/followups", h.GetFollowUps)
	admin.Post("/users/:id/followups", h.ScheduleFollowUp)
	admin.Post("/followups/dispatch", h.DispatchFollowUps)

	// Tickets
	admin.Get("/tickets", h.ListTickets)
	admin.Post("/tickets/:id/claim", h.ClaimTicket)
	admin.Post("/tickets/:id/close", h.CloseTicket)

	// Tools
	admin.Post("/simulate", h.Simulate)
	admin.Get("/stats", h.Stats)
}

// =============================================================================
// Conversations
// =============================================================================

// ListUsers returns every registered user.
// @Summary List users
// @Tags Admin
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users := h.deps.Store.GetUsers(c.UserContext())
	return response.OKWithMeta(c, users, &response.Meta{Total: len(users)})
}

// GetHistory returns the stored chat window of one user.
// @Summary Conversation history
// @Tags Admin
// @Param id path string true "User identity (+62...)"
// @Router /admin/users/{id}/history [get]
func (h *AdminHandler) GetHistory(c *fiber.Ctx) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	history := h.deps.Store.GetHistory(c.UserContext(), user)
	return response.OKWithMeta(c, history, &response.Meta{Total: len(history)})
}

// MetaView is stored meta plus whether it alone would send the next turn to an operator.
type MetaView struct {
	domain.ConversationMeta
	Escalates bool `json:"escalates"`
}

func (h *AdminHandler) GetMeta(c *fiber.Ctx) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	meta := h.deps.Store.GetMeta(c.UserContext(), user)
	return response.OK(c, MetaView{ConversationMeta: meta, Escalates: routing.ShouldHandoffMeta(meta)})
}

func (h *AdminHandler) ListHandoffs(c *fiber.Ctx) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	if h.deps.Archive == nil {
		return apperr.Unavailable("transcript archive")
	}

	limit := response.GetLimit(c, 20, 100)
	records, err := h.deps.Archive.ListHandoffs(c.UserContext(), user, limit)
	if err != nil {
		return apperr.DatabaseError("list handoffs", err)
	}
	return response.OKWithMeta(c, records, &response.Meta{Total: len(records), Limit: limit})
}

// =============================================================================
// Follow-ups
// =============================================================================

func (h *AdminHandler) GetFollowUps(c *fiber.Ctx) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	queue := h.deps.FollowUps.GetFollowQueue(c.UserContext(), user)
	return response.OKWithMeta(c, queue, &response.Meta{Total: len(queue)})
}

// ScheduleFollowUpRequest schedules a follow-up by absolute time or by delay.
type ScheduleFollowUpRequest struct {
	Kind     domain.FollowUpKind `json:"kind"`
	DueAt    int64               `json:"due_at,omitempty"`
	DelayMin int                 `json:"delay_min,omitempty"`
}

// ScheduleFollowUp adds a follow-up unless one of the same kind is pending.
// @Summary Schedule follow-up
// @Tags Admin
// @Accept json
// @Param id path string true "User identity"
// @Router /admin/users/{id}/followups [post]
func (h *AdminHandler) ScheduleFollowUp(c *fiber.Ctx) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}

	var req ScheduleFollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	switch req.Kind {
	case domain.FollowUpStage1, domain.FollowUpStage2:
	case "":
		return apperr.MissingField("kind")
	default:
		return apperr.BadRequest("kind must be STAGE1 or STAGE2")
	}
	if req.DelayMin < 0 {
		return apperr.BadRequest("delay_min must not be negative")
	}

	dueAt := h.now().Add(time.Duration(req.DelayMin) * time.Minute)
	if req.DueAt > 0 {
		dueAt = time.UnixMilli(req.DueAt)
	}

	ctx := c.UserContext()
	scheduled, err := h.deps.FollowUps.ScheduleFollowUp(ctx, user, dueAt, req.Kind)
	if err != nil {
		return apperr.DatabaseError("schedule follow-up", err)
	}

	data := fiber.Map{
		"scheduled": scheduled,
		"queue":     h.deps.FollowUps.GetFollowQueue(ctx, user),
	}
	if scheduled {
		return response.Created(c, data)
	}
	return response.OK(c, data)
}

// DispatchFollowUps runs a scan now. Overlaps with the ticker collapse into one scan.
func (h *AdminHandler) DispatchFollowUps(c *fiber.Ctx) error {
	if h.deps.Dispatcher == nil {
		return apperr.Unavailable("follow-up dispatcher")
	}
	result, err := h.deps.Dispatcher.DispatchDue(c.UserContext())
	if err != nil {
		return apperr.InternalWithError(err)
	}
	return response.OK(c, result)
}

// =============================================================================
// Tickets
// =============================================================================

// ListTickets lists tickets, newest first.
// @Summary List tickets
// @Tags Admin
// @Param status query string false "Comma separated statuses (OPEN,CLAIMED,CLOSED)"
// @Param user query string false "User identity"
// @Param limit query int false "Limit (default 50)"
// @Router /admin/tickets [get]
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	filter := &domain.TicketFilter{
		UserID: domain.NormalizeIdentity(c.Query("user")),
		Limit:  response.GetLimit(c, 50, 200),
	}
	for _, s := range strings.Split(c.Query("status"), ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		switch domain.TicketStatus(s) {
		case domain.TicketOpen, domain.TicketClaimed, domain.TicketClosed:
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
		case "":
		default:
			return apperr.BadRequest("unknown status " + s)
		}
	}

	tickets, err := h.deps.Tickets.List(c.UserContext(), filter)
	if err != nil {
		return apperr.DatabaseError("list tickets", err)
	}
	return response.OKWithMeta(c, tickets, &response.Meta{Total: len(tickets), Limit: filter.Limit})
}

func (h *AdminHandler) ClaimTicket(c *fiber.Ctx) error {
	id, err := ticketParam(c)
	if err != nil {
		return err
	}
	t, err := h.deps.Tickets.Claim(c.UserContext(), id, operator(c))
	if err != nil {
		return ticketError(err)
	}
	return response.OK(c, t)
}

func (h *AdminHandler) CloseTicket(c *fiber.Ctx) error {
	id, err := ticketParam(c)
	if err != nil {
		return err
	}
	t, err := h.deps.Tickets.Close(c.UserContext(), id, operator(c))
	if err != nil {
		return ticketError(err)
	}
	return response.OK(c, t)
}

// =============================================================================
// Tools
// =============================================================================

type SimulateRequest struct {
	Text string `json:"text"`
}

// Simulate runs extraction and routing on text without touching any conversation.
// @Summary Dry-run routing
// @Tags Admin
// @Accept json
// @Router /admin/simulate [post]
func (h *AdminHandler) Simulate(c *fiber.Ctx) error {
	var req SimulateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperr.MissingField("text")
	}
	return response.OK(c, h.deps.Triage.Simulate(req.Text))
}

// Stats collects every registered stats section.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	data := make(fiber.Map, len(h.deps.Stats))
	for name, fn := range h.deps.Stats {
		data[name] = fn()
	}
	return response.OK(c, data)
}

// =============================================================================
// Helpers
// =============================================================================

// userParam reads :id as a user identity. "+" may arrive percent-encoded.
func userParam(c *fiber.Ctx) (string, error) {
	raw, err := url.PathUnescape(c.Params("id"))
	if err != nil {
		return "", apperr.BadRequest("invalid user id")
	}
	user := domain.NormalizeIdentity(raw)
	if user == "" {
		return "", apperr.BadRequest("invalid user id")
	}
	return user, nil
}

func ticketParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid ticket id")
	}
	return id, nil
}

func operator(c *fiber.Ctx) string {
	op, _ := c.Locals(middleware.LocalOperator).(string)
	return op
}

func ticketError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return apperr.NotFound("ticket")
	case errors.Is(err, ticket.ErrInvalidTransition):
		return apperr.Conflict(err.Error())
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.DatabaseError("update ticket", err)
}
