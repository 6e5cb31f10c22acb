package client

import (
	"strings"

	"github.com/ternarybob/drift/internal/models"
)

// MatchesVenue reports whether an event venue names the place. Either name may
// contain the other, or any place-name word of three or more letters may occur
// in the venue.
func MatchesVenue(placeName, venue string) bool {
	name := strings.ToLower(strings.TrimSpace(placeName))
	v := strings.ToLower(strings.TrimSpace(venue))
	if name == "" || v == "" {
		return false
	}
	if strings.Contains(v, name) || strings.Contains(name, v) {
		return true
	}
	for _, word := range strings.Fields(name) {
		if len([]rune(word)) >= 3 && strings.Contains(v, word) {
			return true
		}
	}
	return false
}

// EventsForPlace returns the events whose venue matches the place name
func EventsForPlace(place models.Place, events []models.DriftEvent) []models.DriftEvent {
	var matched []models.DriftEvent
	for _, e := range events {
		if MatchesVenue(place.Name, e.Venue) {
			matched = append(matched, e)
		}
	}
	return matched
}
