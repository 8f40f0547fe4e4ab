package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// MemoryTicketAdapter implements domain.TicketRepository in process memory.
// Used when DATABASE_URL is not configured.
type MemoryTicketAdapter struct {
	mu      sync.RWMutex
	tickets map[uuid.UUID]domain.Ticket
	now     func() time.Time
}

// NewMemoryTicketAdapter creates an empty repository.
func NewMemoryTicketAdapter() *MemoryTicketAdapter {
	return &MemoryTicketAdapter{
		tickets: make(map[uuid.UUID]domain.Ticket),
		now:     time.Now,
	}
}

func (a *MemoryTicketAdapter) Create(ctx context.Context, t *domain.Ticket) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	prepareTicket(t, a.now())
	if _, exists := a.tickets[t.ID]; exists {
		return ErrDuplicate
	}
	a.tickets[t.ID] = *t
	return nil
}

func (a *MemoryTicketAdapter) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	t, ok := a.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (a *MemoryTicketAdapter) List(ctx context.Context, filter *domain.TicketFilter) ([]*domain.Ticket, error) {
	if filter == nil {
		filter = &domain.TicketFilter{}
	}

	a.mu.RLock()
	out := make([]*domain.Ticket, 0, len(a.tickets))
	for _, t := range a.tickets {
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, t.Status) {
			continue
		}
		t := t
		out = append(out, &t)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit := ticketLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *MemoryTicketAdapter) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus, claimedBy string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.tickets[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	if claimedBy != "" {
		t.ClaimedBy = claimedBy
	}
	t.UpdatedAt = a.now()
	a.tickets[id] = t
	return nil
}

func hasStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, want := range statuses {
		if want == s {
			return true
		}
	}
	return false
}
