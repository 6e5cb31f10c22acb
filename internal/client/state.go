package client

import (
	"sort"

	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

// Phase is the consumer's view state
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInterpreting Phase = "interpreting"
	PhaseSearching    Phase = "searching"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseResults      Phase = "results"
)

// State is everything a UI renders for one search
type State struct {
	Phase          Phase
	Interpretation *models.VibeInterpretation
	Places         []models.Place
	Events         []models.DriftEvent
	TotalPlaces    int
	Error          string
}

// Started returns the state at the moment a new request is issued
func Started() State {
	return State{Phase: PhaseInterpreting}
}

// Reduce folds one frame into the state. It never mutates its input.
//
// Analyzing frames are keyed by place id and may arrive in any order, before
// or after events. An analysis for an unknown id, or for a place that already
// has one, leaves the state unchanged.
func Reduce(s State, f stream.Frame) State {
	switch f := f.(type) {
	case stream.InterpretingFrame:
		interp := f.Interpretation
		s.Interpretation = &interp
		s.Phase = PhaseSearching

	case stream.SearchingFrame:
		s.Places = append([]models.Place(nil), f.Places...)
		s.Phase = PhaseAnalyzing

	case stream.AnalyzingFrame:
		s.Places = attachAnalysis(s.Places, f.Update)

	case stream.EventsFrame:
		s.Events = append([]models.DriftEvent(nil), f.Events...)

	case stream.CompleteFrame:
		s.TotalPlaces = f.TotalPlaces
		s.Phase = PhaseResults

	case stream.ErrorFrame:
		s.Error = f.Message
		s.Phase = PhaseIdle
	}
	return s
}

func attachAnalysis(places []models.Place, update models.PlaceUpdate) []models.Place {
	for i := range places {
		if places[i].ID != update.PlaceID {
			continue
		}
		if places[i].VibeAnalysis != nil {
			return places
		}
		out := append([]models.Place(nil), places...)
		analysis := update.VibeAnalysis
		out[i].VibeAnalysis = &analysis
		return out
	}
	return places
}

// Ranked returns the places by descending score. Unscored places count as 0
// and ties keep list order.
func (s State) Ranked() []models.Place {
	ranked := append([]models.Place(nil), s.Places...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	return ranked
}

// MoodColor returns the interpretation color or the default
func (s State) MoodColor() string {
	if s.Interpretation == nil || !models.IsHexColor(s.Interpretation.MoodColor) {
		return models.DefaultMoodColor
	}
	return s.Interpretation.MoodColor
}

// Analyzed counts places that have an analysis
func (s State) Analyzed() int {
	n := 0
	for _, p := range s.Places {
		if p.VibeAnalysis != nil {
			n++
		}
	}
	return n
}
