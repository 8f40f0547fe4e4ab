package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"triage_server/core/domain"
)

const defaultTicketLimit = 100

// TicketSchema creates the tickets table. Applied by EnsureSchema at startup.
const TicketSchema = `
CREATE TABLE IF NOT EXISTS triage_tickets (
	id          UUID PRIMARY KEY,
	user_id     TEXT        NOT NULL,
	type        TEXT        NOT NULL,
	score       INTEGER     NOT NULL DEFAULT 0,
	status      TEXT        NOT NULL,
	lead        TEXT        NOT NULL DEFAULT '',
	summary     TEXT        NOT NULL DEFAULT '',
	claimed_by  TEXT,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_triage_tickets_status ON triage_tickets (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_triage_tickets_user ON triage_tickets (user_id, created_at DESC);
`

// TicketAdapter implements domain.TicketRepository using PostgreSQL.
type TicketAdapter struct {
	db *sqlx.DB
}

// NewTicketAdapter creates a new ticket adapter.
func NewTicketAdapter(db *sqlx.DB) *TicketAdapter {
	return &TicketAdapter{db: db}
}

// EnsureSchema creates the table and indexes when missing.
func (a *TicketAdapter) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, TicketSchema)
	return err
}

// ticketRow represents the database row.
type ticketRow struct {
	ID        uuid.UUID      `db:"id"`
	UserID    string         `db:"user_id"`
	Type      string         `db:"type"`
	Score     int            `db:"score"`
	Status    string         `db:"status"`
	Lead      string         `db:"lead"`
	Summary   string         `db:"summary"`
	ClaimedBy sql.NullString `db:"claimed_by"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *ticketRow) toDomain() *domain.Ticket {
	t := &domain.Ticket{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      domain.TicketType(r.Type),
		Score:     r.Score,
		Status:    domain.TicketStatus(r.Status),
		Lead:      domain.LeadTier(r.Lead),
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ClaimedBy.Valid {
		t.ClaimedBy = r.ClaimedBy.String
	}
	return t
}

// Create inserts a ticket. Missing id and timestamps are filled in.
func (a *TicketAdapter) Create(ctx context.Context, t *domain.Ticket) error {
	prepareTicket(t, time.Now())

	query := `
		INSERT INTO triage_tickets (id, user_id, type, score, status, lead, summary, claimed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var claimedBy sql.NullString
	if t.ClaimedBy != "" {
		claimedBy = sql.NullString{String: t.ClaimedBy, Valid: true}
	}

	_, err := a.db.ExecContext(ctx, query,
		t.ID,
		t.UserID,
		string(t.Type),
		t.Score,
		string(t.Status),
		string(t.Lead),
		t.Summary,
		claimedBy,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Get retrieves a ticket by ID.
func (a *TicketAdapter) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	query := `SELECT * FROM triage_tickets WHERE id = $1`

	var row ticketRow
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// List returns tickets newest first.
func (a *TicketAdapter) List(ctx context.Context, filter *domain.TicketFilter) ([]*domain.Ticket, error) {
	if filter == nil {
		filter = &domain.TicketFilter{}
	}

	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT * FROM triage_tickets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, ticketLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var rows []ticketRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	tickets := make([]*domain.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, rows[i].toDomain())
	}
	return tickets, nil
}

// UpdateStatus moves a ticket to status. An empty claimedBy keeps the current claimer.
func (a *TicketAdapter) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus, claimedBy string) error {
	query := `
		UPDATE triage_tickets
		SET status = $2, claimed_by = COALESCE(NULLIF($3, ''), claimed_by), updated_at = NOW()
		WHERE id = $1
	`
	res, err := a.db.ExecContext(ctx, query, id, string(status), claimedBy)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func prepareTicket(t *domain.Ticket, now time.Time) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = domain.TicketOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

func ticketLimit(limit int) int {
	if limit <= 0 || limit > defaultTicketLimit {
		return defaultTicketLimit
	}
	return limit
}
