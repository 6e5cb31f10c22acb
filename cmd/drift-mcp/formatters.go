package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/drift/internal/client"
)

// formatDiscovery formats a finished discovery as markdown
func formatDiscovery(query string, s client.State) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Places for \"%s\" (%d results)\n\n", query, len(s.Places)))

	if s.Interpretation != nil {
		sb.WriteString(fmt.Sprintf("**Vibe:** %s\n", s.Interpretation.VibeSummary))
		if len(s.Interpretation.VibeAttributes) > 0 {
			sb.WriteString(fmt.Sprintf("**Attributes:** %s\n", strings.Join(s.Interpretation.VibeAttributes, ", ")))
		}
		sb.WriteString(fmt.Sprintf("**Mood color:** %s\n\n", s.MoodColor()))
	}

	if len(s.Places) == 0 {
		sb.WriteString("No places found.\n")
		return sb.String()
	}

	for i, p := range s.Ranked() {
		if p.VibeAnalysis != nil {
			sb.WriteString(fmt.Sprintf("### %d. %s (vibe score %d)\n", i+1, p.Name, p.VibeAnalysis.VibeScore))
		} else {
			sb.WriteString(fmt.Sprintf("### %d. %s (not scored)\n", i+1, p.Name))
		}
		if p.Address != "" {
			sb.WriteString(fmt.Sprintf("**Address:** %s\n", p.Address))
		}
		if p.Rating != nil {
			sb.WriteString(fmt.Sprintf("**Rating:** %.1f\n", *p.Rating))
		}
		if p.WebsiteURI != "" {
			sb.WriteString(fmt.Sprintf("**Website:** %s\n", p.WebsiteURI))
		}
		if a := p.VibeAnalysis; a != nil {
			if a.VibeDescription != "" {
				sb.WriteString(fmt.Sprintf("\n%s\n", a.VibeDescription))
			}
			if a.StandoutDetail != "" {
				sb.WriteString(fmt.Sprintf("\n*Standout:* %s\n", a.StandoutDetail))
			}
			if len(a.MatchingElements) > 0 {
				sb.WriteString(fmt.Sprintf("*Matches:* %s\n", strings.Join(a.MatchingElements, ", ")))
			}
		}
		for _, e := range client.EventsForPlace(p, s.Events) {
			sb.WriteString(fmt.Sprintf("- Live: %s, %s\n", e.Name, e.Date))
		}
		sb.WriteString("\n")
	}

	if len(s.Events) > 0 {
		sb.WriteString("## Happening Nearby\n\n")
		for _, e := range s.Events {
			line := fmt.Sprintf("- **%s** at %s, %s", e.Name, e.Venue, e.Date)
			if e.URL != "" {
				line += fmt.Sprintf(" (%s)", e.URL)
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}
