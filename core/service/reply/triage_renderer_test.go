package reply

import (
	"strings"
	"testing"

	"triage_server/core/domain"
)

var testWorkshop = Workshop{
	Name:    "Matic Center",
	Address: "Jl. Raya Bogor 12",
	MapsURL: "https://maps.example/mc",
	Hours:   "08.00-17.00",
}

func TestParseStyle(t *testing.T) {
	tests := map[string]Style{
		"casual":   StyleCasual,
		" CASUAL ": StyleCasual,
		"formal":   StyleFormal,
		"":         StyleFormal,
		"pirate":   StyleFormal,
	}
	for in, want := range tests {
		if got := ParseStyle(in); got != want {
			t.Errorf("ParseStyle(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRenderBlocks(t *testing.T) {
	r := NewRenderer(StyleFormal, testWorkshop)

	tests := []struct {
		id          domain.TemplateID
		wantInfo    bool
		wantTowing  bool
		mustContain string
	}{
		{domain.TemplateTowing, true, true, "derek"},
		{domain.TemplateLocation, true, false, "lokasi"},
		{domain.TemplateBooking, true, false, "booking"},
		{domain.TemplatePremiumEmergency, true, false, "teknisi senior"},
		{domain.TemplateComplexEmergency, true, false, "CVT"},
		{domain.TemplateAntiNegotiation, false, false, "diagnosa"},
		{domain.TemplateTriageStandard, false, false, "gejala"},
		{domain.TemplateFollowUpStage1, false, false, "menindaklanjuti"},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			text := r.Render(tt.id)
			if got := strings.Contains(text, testWorkshop.Address); got != tt.wantInfo {
				t.Errorf("info block present = %v, want %v\n%s", got, tt.wantInfo, text)
			}
			if got := strings.Contains(text, "share location"); got != tt.wantTowing {
				t.Errorf("towing block present = %v, want %v\n%s", got, tt.wantTowing, text)
			}
			if !strings.Contains(strings.ToLower(text), strings.ToLower(tt.mustContain)) {
				t.Errorf("text missing %q\n%s", tt.mustContain, text)
			}
			if !strings.HasSuffix(text, "Tim Matic Center") {
				t.Errorf("text does not end with signature\n%s", text)
			}
		})
	}
}

func TestRenderEveryTemplateInBothStyles(t *testing.T) {
	ids := []domain.TemplateID{
		domain.TemplateBooking, domain.TemplateTowing, domain.TemplateLocation,
		domain.TemplateAntiNegotiation, domain.TemplatePremiumEmergency, domain.TemplateComplexEmergency,
		domain.TemplateTriageStandard, domain.TemplateTriageComplex, domain.TemplateTriagePremium,
		domain.TemplateFollowUpStage1, domain.TemplateFollowUpStage2,
	}
	for _, style := range []Style{StyleFormal, StyleCasual} {
		r := NewRenderer(style, testWorkshop)
		seen := map[string]domain.TemplateID{}
		for _, id := range ids {
			text := r.Render(id)
			if text == "" {
				t.Errorf("%s/%s rendered empty", style, id)
			}
			if prev, dup := seen[text]; dup {
				t.Errorf("%s: %s and %s render identically", style, prev, id)
			}
			seen[text] = id
		}
	}
}

func TestRenderUnknownFallsBackToTriage(t *testing.T) {
	r := NewRenderer(StyleCasual, Workshop{})
	if got, want := r.Render("NOPE"), r.Render(domain.TemplateTriageStandard); got != want {
		t.Errorf("Render(NOPE) = %q, want %q", got, want)
	}
}

func TestInfoBlockSkipsEmptyFields(t *testing.T) {
	r := NewRenderer(StyleFormal, Workshop{Name: "MC"})
	text := r.Render(domain.TemplateLocation)
	if strings.Contains(text, "Maps:") || strings.Contains(text, "Jam buka:") {
		t.Errorf("empty fields rendered\n%s", text)
	}
}
