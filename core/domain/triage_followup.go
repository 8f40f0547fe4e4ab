package domain

// FollowUpKind tags a delayed re-contact (stage of the nurture sequence).
type FollowUpKind string

const (
	FollowUpStage1 FollowUpKind = "STAGE1"
	FollowUpStage2 FollowUpKind = "STAGE2"
)

// FollowUpTask is a scheduled delayed contact. Times are unix milliseconds.
//
// Within one user's queue at most one task per Kind may be pending (Sent == false).
type FollowUpTask struct {
	DueAt     int64        `json:"due_at"`
	Kind      FollowUpKind `json:"kind"`
	Sent      bool         `json:"sent"`
	CreatedAt int64        `json:"created_at,omitempty"`
	SentAt    int64        `json:"sent_at,omitempty"`
	Skipped   bool         `json:"skipped,omitempty"`
}

// Due reports whether the task is pending and due at nowMs.
func (t FollowUpTask) Due(nowMs int64) bool {
	return !t.Sent && t.DueAt <= nowMs
}

// HasPending reports whether queue holds an unsent task of kind.
func HasPending(queue []FollowUpTask, kind FollowUpKind) bool {
	for _, t := range queue {
		if t.Kind == kind && !t.Sent {
			return true
		}
	}
	return false
}
