package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/drift/internal/models"
)

// Encode renders a frame as one SSE block: "event: <type>\ndata: <json>\n\n".
// json.Marshal never emits raw newlines, so the payload always fits one data line.
func Encode(f Frame) ([]byte, error) {
	data, err := json.Marshal(f.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", f.Type(), err)
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + len(f.Type()) + 16)
	buf.WriteString("event: ")
	buf.WriteString(string(f.Type()))
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// Decode rebuilds a typed frame from an event name and its JSON payload
func Decode(eventType string, data []byte) (Frame, error) {
	switch FrameType(eventType) {
	case TypeInterpreting:
		var v models.VibeInterpretation
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode interpreting payload: %w", err)
		}
		return InterpretingFrame{Interpretation: v}, nil

	case TypeSearching:
		var places []models.Place
		if err := json.Unmarshal(data, &places); err != nil {
			return nil, fmt.Errorf("failed to decode searching payload: %w", err)
		}
		return SearchingFrame{Places: places}, nil

	case TypeAnalyzing:
		var u models.PlaceUpdate
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, fmt.Errorf("failed to decode analyzing payload: %w", err)
		}
		return AnalyzingFrame{Update: u}, nil

	case TypeEvents:
		var events []models.DriftEvent
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("failed to decode events payload: %w", err)
		}
		return EventsFrame{Events: events}, nil

	case TypeComplete:
		var c models.CompletePayload
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to decode complete payload: %w", err)
		}
		return CompleteFrame{TotalPlaces: c.TotalPlaces}, nil

	case TypeError:
		var e models.ErrorPayload
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode error payload: %w", err)
		}
		return ErrorFrame{Message: e.Message, Phase: models.Phase(e.Phase)}, nil

	default:
		return nil, fmt.Errorf("unknown frame type %q", eventType)
	}
}

// Envelope is the WebSocket rendering of a frame
type Envelope struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ToEnvelope wraps a frame for message-oriented transports
func ToEnvelope(f Frame) (Envelope, error) {
	data, err := json.Marshal(f.Payload())
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", f.Type(), err)
	}
	return Envelope{Type: f.Type(), Payload: data}, nil
}

// Frame decodes the envelope back into a typed frame
func (e Envelope) Frame() (Frame, error) {
	return Decode(string(e.Type), e.Payload)
}
