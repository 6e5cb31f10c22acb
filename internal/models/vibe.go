package models

import (
	"math"
	"regexp"
	"strings"
)

// DefaultMoodColor is used when the classifier returns no usable color
const DefaultMoodColor = "#8B5E34"

// MaxSearchQueries bounds the interpretation's search phrases
const MaxSearchQueries = 4

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsHexColor reports whether s is a #rgb or #rrggbb color
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// VibeInterpretation is the classifier's reading of a free-text vibe
type VibeInterpretation struct {
	SearchQueries  []string `json:"search_queries"`
	PlaceTypes     []string `json:"place_types"`
	VibeAttributes []string `json:"vibe_attributes"`
	VibeSummary    string   `json:"vibe_summary"`
	MoodColor      string   `json:"mood_color"`
}

// Normalize enforces 1..4 non-empty search queries (falling back to the raw
// user query), non-nil slices and a valid hex mood color.
func (v VibeInterpretation) Normalize(userQuery string) VibeInterpretation {
	queries := make([]string, 0, MaxSearchQueries)
	for _, q := range v.SearchQueries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
		if len(queries) == MaxSearchQueries {
			break
		}
	}
	if len(queries) == 0 {
		queries = append(queries, strings.TrimSpace(userQuery))
	}
	v.SearchQueries = queries

	if v.PlaceTypes == nil {
		v.PlaceTypes = []string{}
	}
	if v.VibeAttributes == nil {
		v.VibeAttributes = []string{}
	}
	v.VibeSummary = strings.TrimSpace(v.VibeSummary)
	if v.VibeSummary == "" {
		v.VibeSummary = strings.TrimSpace(userQuery)
	}

	v.MoodColor = strings.TrimSpace(v.MoodColor)
	if !IsHexColor(v.MoodColor) {
		v.MoodColor = DefaultMoodColor
	}
	return v
}

// PhotoAnalysis is the classifier's score of one place photo against a vibe
type PhotoAnalysis struct {
	VibeScore        int      `json:"vibe_score"`
	MatchingElements []string `json:"matching_elements"`
	VibeDescription  string   `json:"vibe_description"`
	StandoutDetail   string   `json:"standout_detail"`
}

// ClampScore rounds a raw model score into 0..100
func ClampScore(raw float64) int {
	if math.IsNaN(raw) {
		return 0
	}
	score := int(math.Round(raw))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DriftEvent is a live happening found by grounded search.
// It relates to places only by venue text, never by ID.
type DriftEvent struct {
	Name        string `json:"name"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source,omitempty"`
}
