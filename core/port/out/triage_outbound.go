package out

import (
	"context"

	"triage_server/core/domain"
)

// ReplyMessenger pushes a message to a WhatsApp address outside of a webhook response
// (follow-ups, operator notifications).
type ReplyMessenger interface {
	Send(ctx context.Context, to, body string) error
}

// ReplyPolisher rewrites a rendered triage reply with an LLM. Implementations return the
// draft unchanged when they have nothing better.
type ReplyPolisher interface {
	Polish(ctx context.Context, draft string, history []domain.ChatMessage, signals domain.SignalBundle) (string, error)
}

// TranscriptArchive keeps a copy of the conversation at handoff time.
type TranscriptArchive interface {
	ArchiveHandoff(ctx context.Context, record *HandoffRecord) error
	// ListHandoffs returns a user's archived handoffs, newest first.
	ListHandoffs(ctx context.Context, user string, limit int) ([]*HandoffRecord, error)
}

// HandoffRecord is one archived handoff.
type HandoffRecord struct {
	UserID    string               `json:"user_id" bson:"user_id"`
	TicketID  string               `json:"ticket_id,omitempty" bson:"ticket_id,omitempty"`
	Rule      string               `json:"rule" bson:"rule"`
	Template  domain.TemplateID    `json:"template" bson:"template"`
	Lead      domain.LeadTier      `json:"lead" bson:"lead"`
	Summary   string               `json:"summary" bson:"summary"`
	Signals   domain.SignalBundle  `json:"signals" bson:"signals"`
	History   []domain.ChatMessage `json:"history" bson:"history"`
	CreatedAt int64                `json:"created_at" bson:"created_at"`
}
