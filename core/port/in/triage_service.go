package in

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// TriageUseCase handles one inbound customer message end to end.
type TriageUseCase interface {
	HandleInbound(ctx context.Context, text, sender string) (*TurnResult, error)
	// Simulate runs extraction and routing only; nothing is persisted or sent.
	Simulate(text string) *domain.RouteResult
}

// TurnResult is what the transport needs to answer and escalate.
type TurnResult struct {
	UserID          string              `json:"user_id"`
	ReplyTemplateID domain.TemplateID   `json:"reply_template_id"`
	ReplyText       string              `json:"reply_text"`
	Handoff         bool                `json:"handoff"`
	HandoffNotified bool                `json:"handoff_notified"`
	Lead            domain.LeadTier     `json:"lead"`
	Signals         domain.SignalBundle `json:"signals"`
	Rule            string              `json:"rule"`
	Summary         string              `json:"summary,omitempty"`
	TicketID        string              `json:"ticket_id,omitempty"`
}

// FollowUpUseCase is the follow-up entry point for admin tooling and the dispatcher.
type FollowUpUseCase interface {
	ScheduleFollowUp(ctx context.Context, user string, dueAt time.Time, kind domain.FollowUpKind) (bool, error)
	GetFollowQueue(ctx context.Context, user string) []domain.FollowUpTask
}
