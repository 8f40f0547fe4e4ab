package followup

import (
	"time"

	"triage_server/core/domain"
)

// Policy is consulted after the dedup-by-kind rule and may refuse a new task.
type Policy interface {
	Allow(queue []domain.FollowUpTask, candidate domain.FollowUpTask) bool
}

// Unlimited allows everything the dedup rule lets through.
type Unlimited struct{}

func (Unlimited) Allow([]domain.FollowUpTask, domain.FollowUpTask) bool { return true }

// CapCooldown limits how many follow-ups a customer receives over the conversation's
// lifetime and how close together they are. Pending and delivered tasks count; tasks
// skipped because the customer replied never reached them and do not. Zero values
// disable the respective check.
type CapCooldown struct {
	MaxPerCustomer int
	Cooldown       time.Duration
}

func (p CapCooldown) Allow(queue []domain.FollowUpTask, candidate domain.FollowUpTask) bool {
	if p.MaxPerCustomer > 0 && countContacts(queue) >= p.MaxPerCustomer {
		return false
	}
	if p.Cooldown > 0 {
		if last, ok := latestReference(queue); ok && candidate.DueAt-last < p.Cooldown.Milliseconds() {
			return false
		}
	}
	return true
}

func countContacts(queue []domain.FollowUpTask) int {
	n := 0
	for _, t := range queue {
		if !t.Skipped {
			n++
		}
	}
	return n
}

// latestReference is the newest sentAt (for sent tasks) or dueAt (pending) in queue.
// Skipped tasks are ignored.
func latestReference(queue []domain.FollowUpTask) (int64, bool) {
	var latest int64
	found := false
	for _, t := range queue {
		if t.Skipped {
			continue
		}
		ref := t.DueAt
		if t.Sent && t.SentAt > 0 {
			ref = t.SentAt
		}
		if !found || ref > latest {
			latest = ref
			found = true
		}
	}
	return latest, found
}

// PolicyFromConfig returns Unlimited unless a cap or cooldown is configured.
func PolicyFromConfig(maxPerCustomer int, cooldown time.Duration) Policy {
	if maxPerCustomer <= 0 && cooldown <= 0 {
		return Unlimited{}
	}
	return CapCooldown{MaxPerCustomer: maxPerCustomer, Cooldown: cooldown}
}
