package routing

import (
	"triage_server/core/domain"
)

// premiumUrgencyMin is the urgency at which a premium customer escalates even without
// a drivetrain symptom.
const premiumUrgencyMin = 6

// Assessment is what the escalation decision looks at.
type Assessment struct {
	Signals domain.SignalBundle
	Lead    domain.LeadTier
}

// ShouldHandoff decides human handoff for the default branch of the router.
//
// It is broader than the router's emergency rules: a PREMIUM customer with urgency >= 6
// escalates with no hot/no-move symptom at all.
func ShouldHandoff(a Assessment) bool {
	s := a.Signals
	switch {
	case s.AskedHuman:
		return true
	case a.Lead == domain.LeadA:
		return true
	case s.VehicleTier == domain.VehiclePremium && s.Urgency >= premiumUrgencyMin:
		return true
	case s.Symptoms.NoMove || s.Symptoms.HotNoGo:
		return true
	}
	return false
}

// ShouldHandoffMeta evaluates the decider against persisted conversation meta, for
// callers re-checking a later message. Meta without signals never escalates.
func ShouldHandoffMeta(meta domain.ConversationMeta) bool {
	if meta.LastSignals == nil {
		return false
	}
	return ShouldHandoff(Assessment{Signals: *meta.LastSignals, Lead: meta.LeadTier})
}
