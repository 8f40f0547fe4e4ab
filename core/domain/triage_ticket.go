package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TicketType is the reason a conversation was handed to an operator.
type TicketType string

const (
	TicketEmergency TicketType = "EMERGENCY"
	TicketHandoff   TicketType = "HANDOFF"
)

// TicketStatus is the operator-side lifecycle state.
type TicketStatus string

const (
	TicketOpen    TicketStatus = "OPEN"
	TicketClaimed TicketStatus = "CLAIMED"
	TicketClosed  TicketStatus = "CLOSED"
)

// Ticket is an operator work item created on handoff.
type Ticket struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	UserID    string       `json:"user_id" db:"user_id"`
	Type      TicketType   `json:"type" db:"type"`
	Score     int          `json:"score" db:"score"`
	Status    TicketStatus `json:"status" db:"status"`
	Lead      LeadTier     `json:"lead" db:"lead"`
	Summary   string       `json:"summary" db:"summary"`
	ClaimedBy string       `json:"claimed_by,omitempty" db:"claimed_by"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// AutoClaimAllowed reports whether an open ticket may be claimed without an operator.
// Emergencies always qualify; other tickets need a score of at least minScore.
func AutoClaimAllowed(t *Ticket, minScore int) bool {
	if t == nil || t.Status != TicketOpen {
		return false
	}
	return t.Type == TicketEmergency || t.Score >= minScore
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	Statuses []TicketStatus
	UserID   string
	Limit    int
}

// TicketRepository persists handoff tickets.
type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*Ticket, error)
	List(ctx context.Context, filter *TicketFilter) ([]*Ticket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status TicketStatus, claimedBy string) error
}
