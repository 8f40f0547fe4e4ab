package domain

// TemplateID identifies a reply template. Rendering to text happens outside the router.
type TemplateID string

const (
	TemplateBooking          TemplateID = "BOOKING"
	TemplateTowing           TemplateID = "TOWING"
	TemplateLocation         TemplateID = "LOCATION"
	TemplateAntiNegotiation  TemplateID = "ANTI_NEGOTIATION"
	TemplatePremiumEmergency TemplateID = "PREMIUM_EMERGENCY"
	TemplateComplexEmergency TemplateID = "COMPLEX_EMERGENCY"
	TemplateTriageStandard   TemplateID = "TRIAGE_STANDARD"
	TemplateTriageComplex    TemplateID = "TRIAGE_COMPLEX"
	TemplateTriagePremium    TemplateID = "TRIAGE_PREMIUM"
	TemplateFollowUpStage1   TemplateID = "FOLLOWUP_STAGE1"
	TemplateFollowUpStage2   TemplateID = "FOLLOWUP_STAGE2"
)

// TriageTemplateFor returns the generic triage template for a vehicle tier.
func TriageTemplateFor(tier VehicleTier) TemplateID {
	switch tier {
	case VehiclePremium:
		return TemplateTriagePremium
	case VehicleComplex:
		return TemplateTriageComplex
	default:
		return TemplateTriageStandard
	}
}

// IsTriage reports whether id is one of the generic triage templates.
func (id TemplateID) IsTriage() bool {
	return id == TemplateTriageStandard || id == TemplateTriageComplex || id == TemplateTriagePremium
}

// FollowUpTemplateFor maps a follow-up kind to its template.
func FollowUpTemplateFor(kind FollowUpKind) TemplateID {
	if kind == FollowUpStage2 {
		return TemplateFollowUpStage2
	}
	return TemplateFollowUpStage1
}

// Router rule names, in chain order.
const (
	RuleBooking          = "booking"
	RuleTowing           = "towing"
	RuleLocation         = "location"
	RuleAntiNegotiation  = "anti_negotiation"
	RulePremiumEmergency = "premium_emergency"
	RuleComplexEmergency = "complex_emergency"
	RuleDefault          = "default"
)

// RouteMeta carries the assessment the router decided on.
type RouteMeta struct {
	Signals   SignalBundle `json:"signals"`
	Lead      LeadTier     `json:"lead"`
	LeadScore int          `json:"lead_score"`
	Rule      string       `json:"rule"`
}

// RouteResult is the router's decision for one message.
type RouteResult struct {
	Template TemplateID `json:"template"`
	Handoff  bool       `json:"handoff"`
	Meta     RouteMeta  `json:"meta"`
}

// Emergency reports whether the decision came from one of the forced-handoff rules.
func (r RouteResult) Emergency() bool {
	switch r.Meta.Rule {
	case RuleTowing, RulePremiumEmergency, RuleComplexEmergency:
		return true
	}
	return false
}
