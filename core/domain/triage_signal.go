package domain

// =============================================================================
// Vehicle Tier
// =============================================================================

// VehicleTier classifies the customer's vehicle by brand / drivetrain complexity.
type VehicleTier string

const (
	VehicleStandard VehicleTier = "STANDARD"
	VehicleComplex  VehicleTier = "COMPLEX"
	VehiclePremium  VehicleTier = "PREMIUM"
)

// =============================================================================
// Lead Tier
// =============================================================================

// LeadTier is the coarse sales priority of a conversation (A=hot, B=warm, C=cold).
type LeadTier string

const (
	LeadA LeadTier = "A"
	LeadB LeadTier = "B"
	LeadC LeadTier = "C"
)

// =============================================================================
// Signal Bundle
// =============================================================================

// Symptoms holds the independent drivetrain symptom flags.
type Symptoms struct {
	HotNoGo bool `json:"hot_no_go"`
	NoMove  bool `json:"no_move"`
	Slip    bool `json:"slip"`
	Jerk    bool `json:"jerk"`
	Warning bool `json:"warning"`
}

// Any reports whether at least one symptom is set.
func (s Symptoms) Any() bool {
	return s.HotNoGo || s.NoMove || s.Slip || s.Jerk || s.Warning
}

// Immobilized reports whether the car cannot be driven (noMove or hotNoGo).
func (s Symptoms) Immobilized() bool {
	return s.NoMove || s.HotNoGo
}

// Names returns the set symptom names in a fixed order.
func (s Symptoms) Names() []string {
	names := make([]string, 0, 5)
	if s.HotNoGo {
		names = append(names, "hot_no_go")
	}
	if s.NoMove {
		names = append(names, "no_move")
	}
	if s.Slip {
		names = append(names, "slip")
	}
	if s.Jerk {
		names = append(names, "jerk")
	}
	if s.Warning {
		names = append(names, "warning")
	}
	return names
}

// Urgency and seriousness bounds.
const (
	UrgencyMin     = 1
	UrgencyMax     = 10
	SeriousnessMin = 0
	SeriousnessMax = 100
)

// SignalBundle is the structured assessment of one inbound message.
// It is derived fresh every turn and only persisted folded into ConversationMeta.
type SignalBundle struct {
	VehicleTier    VehicleTier `json:"vehicle_tier"`
	Symptoms       Symptoms    `json:"symptoms"`
	Urgency        int         `json:"urgency"`
	Seriousness    int         `json:"seriousness"`
	Negotiation    bool        `json:"negotiation"`
	LocationIntent bool        `json:"location_intent"`
	BookingIntent  bool        `json:"booking_intent"`
	AskedHuman     bool        `json:"asked_human"`
}

// Intents returns the set intent names in a fixed order.
func (b SignalBundle) Intents() []string {
	names := make([]string, 0, 4)
	if b.Negotiation {
		names = append(names, "negotiation")
	}
	if b.LocationIntent {
		names = append(names, "location")
	}
	if b.BookingIntent {
		names = append(names, "booking")
	}
	if b.AskedHuman {
		names = append(names, "asked_human")
	}
	return names
}
