package classification

import (
	"testing"

	"triage_server/core/domain"
)

// TestScore covers every band boundary.
func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		tier        domain.VehicleTier
		urgency     int
		seriousness int
		want        int
	}{
		{"standard floor", domain.VehicleStandard, 1, 0, 10},
		{"complex floor", domain.VehicleComplex, 1, 0, 20},
		{"premium floor", domain.VehiclePremium, 1, 0, 40},
		{"urgency just below medium", domain.VehicleStandard, 4, 0, 10},
		{"urgency medium", domain.VehicleStandard, 5, 0, 25},
		{"urgency just below high", domain.VehicleStandard, 7, 0, 25},
		{"urgency high", domain.VehicleStandard, 8, 0, 35},
		{"seriousness just below medium", domain.VehicleStandard, 1, 44, 10},
		{"seriousness medium", domain.VehicleStandard, 1, 45, 18},
		{"seriousness just below high", domain.VehicleStandard, 1, 69, 18},
		{"seriousness high", domain.VehicleStandard, 1, 70, 25},
		{"premium ceiling", domain.VehiclePremium, 10, 100, 80},
		{"unknown tier scores as standard", domain.VehicleTier("TRUCK"), 1, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.tier, tt.urgency, tt.seriousness); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		tier        domain.VehicleTier
		urgency     int
		seriousness int
		want        domain.LeadTier
	}{
		{"premium emergency is A", domain.VehiclePremium, 9, 50, domain.LeadA},
		{"premium calm is B", domain.VehiclePremium, 1, 50, domain.LeadB},
		{"premium idle is C", domain.VehiclePremium, 1, 35, domain.LeadC},
		{"complex urgent serious is B", domain.VehicleComplex, 8, 70, domain.LeadB},
		{"complex stuck is C", domain.VehicleComplex, 6, 50, domain.LeadC},
		{"standard everything maxed is B", domain.VehicleStandard, 10, 100, domain.LeadB},
		{"standard chat is C", domain.VehicleStandard, 1, 50, domain.LeadC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.tier, tt.urgency, tt.seriousness); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTierForScoreThresholds(t *testing.T) {
	tests := []struct {
		points int
		want   domain.LeadTier
	}{
		{44, domain.LeadC},
		{45, domain.LeadB},
		{69, domain.LeadB},
		{70, domain.LeadA},
	}
	for _, tt := range tests {
		if got := TierForScore(tt.points); got != tt.want {
			t.Errorf("TierForScore(%d) = %s, want %s", tt.points, got, tt.want)
		}
	}
}

// TestClassifyMonotone holds the tier fixed and checks that raising urgency or
// seriousness never lowers the lead.
func TestClassifyMonotone(t *testing.T) {
	rank := map[domain.LeadTier]int{domain.LeadC: 0, domain.LeadB: 1, domain.LeadA: 2}
	tiers := []domain.VehicleTier{domain.VehicleStandard, domain.VehicleComplex, domain.VehiclePremium}

	for _, tier := range tiers {
		for s := domain.SeriousnessMin; s <= domain.SeriousnessMax; s++ {
			prevScore, prevLead := -1, -1
			for u := domain.UrgencyMin; u <= domain.UrgencyMax; u++ {
				score := Score(tier, u, s)
				lead := rank[Classify(tier, u, s)]
				if score < prevScore || lead < prevLead {
					t.Fatalf("%s: not monotone in urgency at u=%d s=%d", tier, u, s)
				}
				prevScore, prevLead = score, lead
			}
		}
		for u := domain.UrgencyMin; u <= domain.UrgencyMax; u++ {
			prevScore, prevLead := -1, -1
			for s := domain.SeriousnessMin; s <= domain.SeriousnessMax; s++ {
				score := Score(tier, u, s)
				lead := rank[Classify(tier, u, s)]
				if score < prevScore || lead < prevLead {
					t.Fatalf("%s: not monotone in seriousness at u=%d s=%d", tier, u, s)
				}
				prevScore, prevLead = score, lead
			}
		}
	}
}

func TestClassifyBundle(t *testing.T) {
	lead, score := ClassifyBundle(domain.SignalBundle{
		VehicleTier: domain.VehiclePremium,
		Urgency:     9,
		Seriousness: 50,
	})
	if lead != domain.LeadA || score != 73 {
		t.Errorf("ClassifyBundle() = %s, %d; want A, 73", lead, score)
	}
}
