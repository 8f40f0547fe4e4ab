// Package ticket manages operator tickets opened on handoff.
package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"
)

// AutoClaimer is recorded as the claimer of tickets claimed at creation.
const AutoClaimer = "auto"

// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid ticket transition")

// Service handles ticket operations.
type Service struct {
	repo              domain.TicketRepository
	autoClaimMinScore int
	now               func() time.Time
}

// NewService creates a ticket service.
func NewService(repo domain.TicketRepository, autoClaimMinScore int) *Service {
	return &Service{
		repo:              repo,
		autoClaimMinScore: autoClaimMinScore,
		now:               time.Now,
	}
}

// Open creates a ticket for a handoff decision. Emergency rules open EMERGENCY tickets,
// everything else HANDOFF. Tickets that qualify are claimed immediately.
func (s *Service) Open(ctx context.Context, userID string, route domain.RouteResult, summary string) (*domain.Ticket, error) {
	t := &domain.Ticket{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.TicketHandoff,
		Score:     route.Meta.LeadScore,
		Status:    domain.TicketOpen,
		Lead:      route.Meta.Lead,
		Summary:   summary,
		CreatedAt: s.now(),
	}
	if route.Emergency() {
		t.Type = domain.TicketEmergency
	}
	if domain.AutoClaimAllowed(t, s.autoClaimMinScore) {
		t.Status = domain.TicketClaimed
		t.ClaimedBy = AutoClaimer
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return s.repo.Get(ctx, id)
}

// List returns tickets matching filter.
func (s *Service) List(ctx context.Context, filter *domain.TicketFilter) ([]*domain.Ticket, error) {
	return s.repo.List(ctx, filter)
}

// Claim assigns an open ticket to an operator.
func (s *Service) Claim(ctx context.Context, id uuid.UUID, operator string) (*domain.Ticket, error) {
	if operator == "" {
		return nil, apperr.MissingField("operator")
	}
	return s.transition(ctx, id, domain.TicketClaimed, operator)
}

// Close finishes a ticket. Closed is terminal.
func (s *Service) Close(ctx context.Context, id uuid.UUID, operator string) (*domain.Ticket, error) {
	return s.transition(ctx, id, domain.TicketClosed, operator)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to domain.TicketStatus, operator string) (*domain.Ticket, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, to) {
		return nil, ErrInvalidTransition
	}
	if err := s.repo.UpdateStatus(ctx, id, to, operator); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// CanTransition reports whether from → to is a legal lifecycle step.
// OPEN → CLAIMED, OPEN → CLOSED, CLAIMED → CLOSED.
func CanTransition(from, to domain.TicketStatus) bool {
	switch from {
	case domain.TicketOpen:
		return to == domain.TicketClaimed || to == domain.TicketClosed
	case domain.TicketClaimed:
		return to == domain.TicketClosed
	}
	return false
}
