package llm

import (
	"fmt"
	"strings"
	"time"
)

const interpretSystemInstruction = `You are a place discovery AI for "Drift", the anti-Yelp.
Given a user's mood or vibe description, interpret what kinds of physical spaces would match.
Consider: atmosphere, lighting, sound level, decor style, crowd energy, and activity type.
Generate 2-4 specific search queries that would find matching places on Google Maps.
Pick place_types from: restaurant, cafe, bar, bakery, book_store, library, park, museum, art_gallery, spa, night_club, movie_theater, bowling_alley, gym, clothing_store.
For vibe_attributes, focus on VISUAL elements visible in photos.
The mood_color should be a hex color that emotionally represents the vibe (warm amber for cozy, cool blue for serene, deep red for romantic, bright green for energetic, etc.).`

func photoPrompt(attributes []string, summary string) string {
	return fmt.Sprintf(`Analyze this photo of a place. The user is looking for: %q.
Desired vibe attributes: %s.
Score how well this place matches the vibe on a 0-100 scale.

Scoring guide:
- 80-100: Strong match, most vibe attributes clearly present
- 60-79: Good match, several matching elements, would satisfy the mood
- 40-59: Partial match, some elements present but missing key aspects
- 20-39: Weak match, few matching elements
- 0-19: Poor match, completely different vibe

Be generous but honest. Most real places that broadly fit the category should score 40-70. Only truly perfect matches get 80+. Focus on overall atmosphere and feeling, not just literal checklist items.`,
		summary, strings.Join(attributes, ", "))
}

// eventsDate renders today the way the events prompt expects it
func eventsDate(now time.Time) string {
	return now.Format("Monday, January 2, 2006")
}

func eventsPrompt(summary string, placeNames []string, lat, lng float64, maxEvents int, now time.Time) string {
	return fmt.Sprintf(`Find live events, shows, performances, or special happenings this week near latitude %g, longitude %g.

The user is in the mood for: %q
They're considering visiting places like: %s

Today is %s. Find real events happening tonight, tomorrow, or this week that match this vibe. Include concerts, live music, comedy shows, art openings, food festivals, pop-ups, DJ sets, trivia nights, open mics, or any relevant happenings.

Return up to %d events. Only include events you can verify are actually happening. Include the source URL where you found each event.

%s`,
		lat, lng, summary, strings.Join(placeNames, ", "), eventsDate(now), maxEvents, schemaInstruction(EventsSchema))
}
