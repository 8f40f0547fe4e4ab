// Package signal turns free-form customer text into a structured SignalBundle.
package signal

import (
	"strings"

	"triage_server/core/domain"
)

// =============================================================================
// Detectors
// =============================================================================

// Detector is a named substring predicate over a phrase list.
type Detector struct {
	Name    string
	Phrases []string
}

// Match reports whether any phrase occurs in the normalized text.
func (d Detector) Match(normalized string) bool {
	return containsAny(normalized, d.Phrases)
}

var (
	PremiumVehicle = Detector{Name: "vehicle:premium", Phrases: premiumVehiclePhrases}
	ComplexVehicle = Detector{Name: "vehicle:complex", Phrases: complexVehiclePhrases}

	HotNoGo = Detector{Name: "symptom:hot_no_go", Phrases: hotNoGoPhrases}
	NoMove  = Detector{Name: "symptom:no_move", Phrases: noMovePhrases}
	Slip    = Detector{Name: "symptom:slip", Phrases: slipPhrases}
	Jerk    = Detector{Name: "symptom:jerk", Phrases: jerkPhrases}
	Warning = Detector{Name: "symptom:warning", Phrases: warningPhrases}

	Immediacy  = Detector{Name: "urgency:immediacy", Phrases: immediacyPhrases}
	Burning    = Detector{Name: "urgency:burning", Phrases: burningPhrases}
	Diagnostic = Detector{Name: "seriousness:diagnostic", Phrases: diagnosticPhrases}

	Negotiation = Detector{Name: "intent:negotiation", Phrases: negotiationPhrases}
	Location    = Detector{Name: "intent:location", Phrases: locationPhrases}
	Booking     = Detector{Name: "intent:booking", Phrases: bookingPhrases}
	AskedHuman  = Detector{Name: "intent:asked_human", Phrases: askedHumanPhrases}

	Towing = Detector{Name: "route:towing", Phrases: towingPhrases}
)

// Score adjustments.
const (
	urgencyBase      = 1
	urgencyImmediacy = 2
	urgencyNoMove    = 5
	urgencyHotNoGo   = 3
	urgencyBurning   = 2

	seriousnessBase        = 50
	seriousnessShortText   = -15
	seriousnessNegotiation = -10
	seriousnessDiagnostic  = 15

	shortTextLen = 8
)

// =============================================================================
// Extraction
// =============================================================================

// Normalize lower-cases text, collapses whitespace runs to one space and trims.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Extract maps raw text to a SignalBundle. It is pure and total: empty or
// unrecognised input yields the low default bundle.
func Extract(text string) domain.SignalBundle {
	return ExtractNormalized(Normalize(text))
}

// ExtractNormalized is Extract for text that already went through Normalize.
func ExtractNormalized(t string) domain.SignalBundle {
	b := domain.SignalBundle{
		VehicleTier: VehicleTierOf(t),
		Symptoms: domain.Symptoms{
			HotNoGo: HotNoGo.Match(t),
			NoMove:  NoMove.Match(t),
			Slip:    Slip.Match(t),
			Jerk:    Jerk.Match(t),
			Warning: Warning.Match(t),
		},
		Negotiation:    Negotiation.Match(t),
		LocationIntent: Location.Match(t),
		BookingIntent:  Booking.Match(t),
		AskedHuman:     AskedHuman.Match(t),
	}
	b.Urgency = urgencyOf(t, b.Symptoms)
	b.Seriousness = seriousnessOf(t, b.Negotiation)
	return b
}

// VehicleTierOf checks premium before complex; no match is STANDARD.
func VehicleTierOf(normalized string) domain.VehicleTier {
	switch {
	case PremiumVehicle.Match(normalized):
		return domain.VehiclePremium
	case ComplexVehicle.Match(normalized):
		return domain.VehicleComplex
	default:
		return domain.VehicleStandard
	}
}

// Bonuses are cumulative.
func urgencyOf(t string, s domain.Symptoms) int {
	u := urgencyBase
	if Immediacy.Match(t) {
		u += urgencyImmediacy
	}
	if s.NoMove {
		u += urgencyNoMove
	}
	if s.HotNoGo {
		u += urgencyHotNoGo
	}
	if Burning.Match(t) {
		u += urgencyBurning
	}
	return clamp(u, domain.UrgencyMin, domain.UrgencyMax)
}

func seriousnessOf(t string, negotiation bool) int {
	s := seriousnessBase
	if len([]rune(t)) < shortTextLen {
		s += seriousnessShortText
	}
	if negotiation {
		s += seriousnessNegotiation
	}
	if Diagnostic.Match(t) {
		s += seriousnessDiagnostic
	}
	return clamp(s, domain.SeriousnessMin, domain.SeriousnessMax)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
