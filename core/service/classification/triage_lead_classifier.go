// Package classification derives the lead tier of a conversation from its signals.
package classification

import (
	"triage_server/core/domain"
)

// =============================================================================
// Lead Scoring
// =============================================================================
//
// Band boundaries are business-tuned. Do not shift them without sales sign-off.

// Tier base points.
const (
	PointsPremium  = 40
	PointsComplex  = 20
	PointsStandard = 10
)

// Urgency bands.
const (
	UrgencyHighMin   = 8
	UrgencyMediumMin = 5

	PointsUrgencyHigh   = 25
	PointsUrgencyMedium = 15
)

// Seriousness bands.
const (
	SeriousnessHighMin   = 70
	SeriousnessMediumMin = 45

	PointsSeriousnessHigh   = 15
	PointsSeriousnessMedium = 8
)

// Lead thresholds.
const (
	LeadAMin = 70
	LeadBMin = 45
)

// Score returns the weighted lead points.
func Score(tier domain.VehicleTier, urgency, seriousness int) int {
	points := tierPoints(tier)

	switch {
	case urgency >= UrgencyHighMin:
		points += PointsUrgencyHigh
	case urgency >= UrgencyMediumMin:
		points += PointsUrgencyMedium
	}

	switch {
	case seriousness >= SeriousnessHighMin:
		points += PointsSeriousnessHigh
	case seriousness >= SeriousnessMediumMin:
		points += PointsSeriousnessMedium
	}

	return points
}

// Classify maps the weighted points to A/B/C.
func Classify(tier domain.VehicleTier, urgency, seriousness int) domain.LeadTier {
	return TierForScore(Score(tier, urgency, seriousness))
}

// ClassifyBundle is Classify over a SignalBundle.
func ClassifyBundle(b domain.SignalBundle) (domain.LeadTier, int) {
	score := Score(b.VehicleTier, b.Urgency, b.Seriousness)
	return TierForScore(score), score
}

// TierForScore applies the lead thresholds.
func TierForScore(points int) domain.LeadTier {
	switch {
	case points >= LeadAMin:
		return domain.LeadA
	case points >= LeadBMin:
		return domain.LeadB
	default:
		return domain.LeadC
	}
}

func tierPoints(tier domain.VehicleTier) int {
	switch tier {
	case domain.VehiclePremium:
		return PointsPremium
	case domain.VehicleComplex:
		return PointsComplex
	default:
		return PointsStandard
	}
}
