// Package stream defines the typed frames of a discovery response and their
// Server-Sent-Events wire encoding.
package stream

import (
	"github.com/ternarybob/drift/internal/models"
)

// FrameType is the SSE event name of a frame
type FrameType string

const (
	TypeInterpreting FrameType = "interpreting"
	TypeSearching    FrameType = "searching"
	TypeAnalyzing    FrameType = "analyzing"
	TypeEvents       FrameType = "events"
	TypeComplete     FrameType = "complete"
	TypeError        FrameType = "error"
)

// Terminal reports whether a frame of this type ends the stream
func (t FrameType) Terminal() bool {
	return t == TypeComplete || t == TypeError
}

// Frame is the closed set of messages on one discovery stream.
// Implementations are the six *Frame types in this package.
type Frame interface {
	Type() FrameType
	Payload() any
	isFrame()
}

// InterpretingFrame carries the vibe interpretation
type InterpretingFrame struct {
	Interpretation models.VibeInterpretation
}

// SearchingFrame carries the whole deduplicated, capped place list
type SearchingFrame struct {
	Places []models.Place
}

// AnalyzingFrame carries exactly one place's photo analysis
type AnalyzingFrame struct {
	Update models.PlaceUpdate
}

// EventsFrame carries the live events batch
type EventsFrame struct {
	Events []models.DriftEvent
}

// CompleteFrame ends a successful stream
type CompleteFrame struct {
	TotalPlaces int
}

// ErrorFrame ends a failed stream
type ErrorFrame struct {
	Message string
	Phase   models.Phase
}

func (InterpretingFrame) Type() FrameType { return TypeInterpreting }
func (SearchingFrame) Type() FrameType    { return TypeSearching }
func (AnalyzingFrame) Type() FrameType    { return TypeAnalyzing }
func (EventsFrame) Type() FrameType       { return TypeEvents }
func (CompleteFrame) Type() FrameType     { return TypeComplete }
func (ErrorFrame) Type() FrameType        { return TypeError }

func (f InterpretingFrame) Payload() any { return f.Interpretation }

func (f SearchingFrame) Payload() any {
	if f.Places == nil {
		return []models.Place{}
	}
	return f.Places
}

func (f AnalyzingFrame) Payload() any { return f.Update }

func (f EventsFrame) Payload() any {
	if f.Events == nil {
		return []models.DriftEvent{}
	}
	return f.Events
}

func (f CompleteFrame) Payload() any {
	return models.CompletePayload{TotalPlaces: f.TotalPlaces}
}

func (f ErrorFrame) Payload() any {
	return models.ErrorPayload{Message: f.Message, Phase: string(f.Phase)}
}

func (InterpretingFrame) isFrame() {}
func (SearchingFrame) isFrame()    {}
func (AnalyzingFrame) isFrame()    {}
func (EventsFrame) isFrame()       {}
func (CompleteFrame) isFrame()     {}
func (ErrorFrame) isFrame()        {}
