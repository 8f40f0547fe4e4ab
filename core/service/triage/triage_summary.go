package triage

import (
	"fmt"
	"strings"

	"triage_server/core/domain"
)

// summaryLine is one "key: value" entry of an operator summary.
type summaryLine struct {
	key   string
	value string
}

// BuildSummary renders the handoff summary forwarded to operators. Keys appear in a
// fixed order so operators can scan it on a phone screen.
func BuildSummary(user, text string, route domain.RouteResult) string {
	s := route.Meta.Signals
	lines := []summaryLine{
		{"user", user},
		{"lead", fmt.Sprintf("%s (%d)", route.Meta.Lead, route.Meta.LeadScore)},
		{"vehicle", string(s.VehicleTier)},
		{"urgency", fmt.Sprintf("%d/10", s.Urgency)},
		{"seriousness", fmt.Sprintf("%d/100", s.Seriousness)},
		{"symptoms", joinOrDash(s.Symptoms.Names())},
		{"intents", joinOrDash(s.Intents())},
		{"rule", route.Meta.Rule},
		{"template", string(route.Template)},
		{"message", oneLine(text)},
	}

	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.key)
		b.WriteString(": ")
		b.WriteString(l.value)
	}
	return b.String()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// oneLine keeps the customer text from breaking the key/value layout.
func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
