// Package followup keeps the per-user queue of delayed re-contacts.
package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
)

var _ in.FollowUpUseCase = (*Scheduler)(nil)

// Scheduler enqueues follow-ups. It never sends anything; delivery belongs to the
// dispatcher, which reads the queue and marks tasks sent.
type Scheduler struct {
	store  out.ConversationStore
	policy Policy
	now    func() time.Time
	log    zerolog.Logger
}

// NewScheduler creates a scheduler. A nil policy means Unlimited.
func NewScheduler(store out.ConversationStore, policy Policy, log zerolog.Logger) *Scheduler {
	if policy == nil {
		policy = Unlimited{}
	}
	return &Scheduler{
		store:  store,
		policy: policy,
		now:    time.Now,
		log:    log.With().Str("component", "followup_scheduler").Logger(),
	}
}

// WithClock overrides the time source (tests).
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// ScheduleFollowUp appends a pending task of kind due at dueAt and registers user so the
// dispatcher scans the queue. It is a no-op, reporting false, when a pending task of the
// same kind exists or the policy refuses.
func (s *Scheduler) ScheduleFollowUp(ctx context.Context, user string, dueAt time.Time, kind domain.FollowUpKind) (bool, error) {
	if user == "" || kind == "" {
		return false, fmt.Errorf("schedule follow-up: user and kind are required")
	}

	candidate := domain.FollowUpTask{
		DueAt:     dueAt.UnixMilli(),
		Kind:      kind,
		CreatedAt: s.now().UnixMilli(),
	}

	added := false
	err := s.store.UpdateFollowQueue(ctx, user, func(queue []domain.FollowUpTask) ([]domain.FollowUpTask, bool) {
		added = false
		if domain.HasPending(queue, kind) {
			return queue, false
		}
		if !s.policy.Allow(queue, candidate) {
			return queue, false
		}
		added = true
		return append(queue, candidate), true
	})
	if err != nil {
		return false, fmt.Errorf("schedule follow-up %s for %s: %w", kind, user, err)
	}

	if !added {
		return false, nil
	}
	if err := s.store.AddUser(ctx, user); err != nil {
		return true, fmt.Errorf("register follow-up user %s: %w", user, err)
	}

	s.log.Debug().Str("user", user).Str("kind", string(kind)).Int64("due_at", candidate.DueAt).Msg("follow-up scheduled")
	return true, nil
}

// GetFollowQueue returns the user's whole queue, sent tasks included.
func (s *Scheduler) GetFollowQueue(ctx context.Context, user string) []domain.FollowUpTask {
	return s.store.GetFollowQueue(ctx, user)
}

// MarkSent flips the pending task of kind to sent. It reports false when no pending
// task of that kind exists (someone else already drained it).
func (s *Scheduler) MarkSent(ctx context.Context, user string, kind domain.FollowUpKind, at time.Time, skipped bool) (bool, error) {
	marked := false
	err := s.store.UpdateFollowQueue(ctx, user, func(queue []domain.FollowUpTask) ([]domain.FollowUpTask, bool) {
		marked = false
		for i := range queue {
			if queue[i].Kind == kind && !queue[i].Sent {
				queue[i].Sent = true
				queue[i].SentAt = at.UnixMilli()
				queue[i].Skipped = skipped
				marked = true
				return queue, true
			}
		}
		return queue, false
	})
	if err != nil {
		return false, fmt.Errorf("mark follow-up %s sent for %s: %w", kind, user, err)
	}
	return marked, nil
}

// DueTasks returns the pending tasks of queue that are due at now.
func DueTasks(queue []domain.FollowUpTask, now time.Time) []domain.FollowUpTask {
	nowMs := now.UnixMilli()
	var due []domain.FollowUpTask
	for _, t := range queue {
		if t.Due(nowMs) {
			due = append(due, t)
		}
	}
	return due
}
