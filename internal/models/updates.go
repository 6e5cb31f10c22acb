package models

// Phase names a pipeline stage. Error frames carry the phase that failed.
type Phase string

const (
	PhaseInterpreting Phase = "interpreting"
	PhaseSearching    Phase = "searching"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseEvents       Phase = "events"
)

// PlaceUpdate attaches one analysis to one place
type PlaceUpdate struct {
	PlaceID      string        `json:"placeId"`
	VibeAnalysis PhotoAnalysis `json:"vibeAnalysis"`
}

// CompletePayload ends a successful stream
type CompletePayload struct {
	TotalPlaces int `json:"totalPlaces"`
}

// ErrorPayload ends a failed stream
type ErrorPayload struct {
	Message string `json:"message"`
	Phase   string `json:"phase"`
}
