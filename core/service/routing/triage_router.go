// Package routing selects the reply template and the handoff decision for a message.
package routing

import (
	"triage_server/core/domain"
	"triage_server/core/service/classification"
	"triage_server/core/service/signal"
)

// complexEmergencyUrgencyMin gates the complex-drivetrain emergency rule.
const complexEmergencyUrgencyMin = 6

// routeInput is what every rule sees.
type routeInput struct {
	normalized string
	signals    domain.SignalBundle
}

// routeRule is one link of the priority chain.
type routeRule struct {
	name     string
	match    func(in routeInput) bool
	template domain.TemplateID
	handoff  bool
}

// Order is significant: first match wins.
var rules = []routeRule{
	{
		name:     domain.RuleBooking,
		match:    func(in routeInput) bool { return signal.IsShortBooking(in.normalized) },
		template: domain.TemplateBooking,
	},
	{
		name:     domain.RuleTowing,
		match:    func(in routeInput) bool { return signal.Towing.Match(in.normalized) },
		template: domain.TemplateTowing,
		handoff:  true,
	},
	{
		name:     domain.RuleLocation,
		match:    func(in routeInput) bool { return in.signals.LocationIntent },
		template: domain.TemplateLocation,
	},
	{
		name: domain.RuleAntiNegotiation,
		match: func(in routeInput) bool {
			return in.signals.Negotiation && !in.signals.Symptoms.Immobilized()
		},
		template: domain.TemplateAntiNegotiation,
	},
	{
		name: domain.RulePremiumEmergency,
		match: func(in routeInput) bool {
			return in.signals.VehicleTier == domain.VehiclePremium && in.signals.Symptoms.Immobilized()
		},
		template: domain.TemplatePremiumEmergency,
		handoff:  true,
	},
	{
		name: domain.RuleComplexEmergency,
		match: func(in routeInput) bool {
			return in.signals.VehicleTier == domain.VehicleComplex &&
				in.signals.Symptoms.Immobilized() &&
				in.signals.Urgency >= complexEmergencyUrgencyMin
		},
		template: domain.TemplateComplexEmergency,
		handoff:  true,
	},
}

// Route runs the rule chain over text and its signals. Unmatched messages fall through
// to the tier-specific triage template, with handoff decided by ShouldHandoff.
func Route(text string, signals domain.SignalBundle) domain.RouteResult {
	in := routeInput{normalized: signal.Normalize(text), signals: signals}
	lead, score := classification.ClassifyBundle(signals)

	meta := domain.RouteMeta{
		Signals:   signals,
		Lead:      lead,
		LeadScore: score,
	}

	for _, r := range rules {
		if !r.match(in) {
			continue
		}
		meta.Rule = r.name
		return domain.RouteResult{
			Template: r.template,
			Handoff:  r.handoff,
			Meta:     meta,
		}
	}

	meta.Rule = domain.RuleDefault
	return domain.RouteResult{
		Template: domain.TriageTemplateFor(signals.VehicleTier),
		Handoff:  ShouldHandoff(Assessment{Signals: signals, Lead: lead}),
		Meta:     meta,
	}
}

// Assess extracts signals from text and routes it.
func Assess(text string) domain.RouteResult {
	return Route(text, signal.Extract(text))
}
