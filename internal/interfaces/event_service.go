package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventDriftStarted is published when a pipeline run begins.
	// Payload: map with "request_id", "query"
	EventDriftStarted EventType = "drift_started"

	// EventDriftPhase is published on every phase transition.
	// Payload: map with "request_id", "phase", "count"
	EventDriftPhase EventType = "drift_phase"

	// EventDriftCompleted is published after the complete frame.
	// Payload: map with "request_id", "total_places", "analyzed", "events", "duration_ms"
	EventDriftCompleted EventType = "drift_completed"

	// EventDriftFailed is published after an error frame.
	// Payload: map with "request_id", "phase", "error"
	EventDriftFailed EventType = "drift_failed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
