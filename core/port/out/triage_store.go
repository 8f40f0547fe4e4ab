package out

import (
	"context"

	"triage_server/core/domain"
)

// ConversationStore is the per-user persistence port.
//
// Reads never fail: a missing, unreadable or malformed value comes back as the empty
// default ([] or zero meta). Writes return an error the caller may log; the reply path
// does not depend on them succeeding.
type ConversationStore interface {
	// Chat history (sliding window)
	GetHistory(ctx context.Context, user string) []domain.ChatMessage
	AddMessage(ctx context.Context, user string, msg domain.ChatMessage) error

	// Conversation meta (whole-value rewrite)
	GetMeta(ctx context.Context, user string) domain.ConversationMeta
	SetMeta(ctx context.Context, user string, meta domain.ConversationMeta) error

	// Follow-up queue
	GetFollowQueue(ctx context.Context, user string) []domain.FollowUpTask
	SaveFollowQueue(ctx context.Context, user string, queue []domain.FollowUpTask) error
	// UpdateFollowQueue applies fn to the current queue atomically per user.
	// fn returns the new queue and whether it changed; unchanged queues are not written.
	UpdateFollowQueue(ctx context.Context, user string, fn func([]domain.FollowUpTask) ([]domain.FollowUpTask, bool)) error

	// User registry (grows monotonically)
	GetUsers(ctx context.Context) []string
	AddUser(ctx context.Context, user string) error
}
