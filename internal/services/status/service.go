package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
)

// AppState represents the application state
type AppState string

const (
	StateIdle        AppState = "idle"
	StateDiscovering AppState = "discovering"
)

// Snapshot is the status reported by /api/status
type Snapshot struct {
	State      AppState   `json:"state"`
	Active     int        `json:"active"`
	Started    int        `json:"started"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastPhase  string     `json:"last_phase,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	UptimeSecs int64      `json:"uptime_seconds"`
}

// Service tracks pipeline runs from lifecycle events
type Service struct {
	mu           sync.RWMutex
	eventService interfaces.EventService
	logger       arbor.ILogger
	startedAt    time.Time

	active    int
	started   int
	completed int
	failed    int
	lastRunAt time.Time
	lastPhase string
	lastError string
}

// NewService creates a new StatusService
func NewService(eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		eventService: eventService,
		logger:       logger,
		startedAt:    time.Now(),
	}
}

// GetState returns the current application state (thread-safe)
func (s *Service) GetState() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active > 0 {
		return StateDiscovering
	}
	return StateIdle
}

// GetStatus returns a copy of the counters
func (s *Service) GetStatus() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:      StateIdle,
		Active:     s.active,
		Started:    s.started,
		Completed:  s.completed,
		Failed:     s.failed,
		LastPhase:  s.lastPhase,
		LastError:  s.lastError,
		UptimeSecs: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.active > 0 {
		snap.State = StateDiscovering
	}
	if !s.lastRunAt.IsZero() {
		t := s.lastRunAt
		snap.LastRunAt = &t
	}
	return snap
}

// SubscribeToDriftEvents keeps the counters in step with pipeline runs
func (s *Service) SubscribeToDriftEvents() error {
	handlers := map[interfaces.EventType]interfaces.EventHandler{
		interfaces.EventDriftStarted: func(ctx context.Context, event interfaces.Event) error {
			s.mu.Lock()
			s.active++
			s.started++
			s.lastRunAt = time.Now()
			s.mu.Unlock()
			return nil
		},
		interfaces.EventDriftPhase: func(ctx context.Context, event interfaces.Event) error {
			if phase, ok := payloadString(event, "phase"); ok {
				s.mu.Lock()
				s.lastPhase = phase
				s.mu.Unlock()
			}
			return nil
		},
		interfaces.EventDriftCompleted: func(ctx context.Context, event interfaces.Event) error {
			s.mu.Lock()
			s.finish()
			s.completed++
			s.mu.Unlock()
			return nil
		},
		interfaces.EventDriftFailed: func(ctx context.Context, event interfaces.Event) error {
			msg, _ := payloadString(event, "error")
			s.mu.Lock()
			s.finish()
			s.failed++
			s.lastError = msg
			s.mu.Unlock()
			return nil
		},
	}

	for eventType, handler := range handlers {
		if err := s.eventService.Subscribe(eventType, handler); err != nil {
			return err
		}
	}

	s.logger.Debug().Msg("StatusService subscribed to drift events")
	return nil
}

// finish must be called with mu held
func (s *Service) finish() {
	if s.active > 0 {
		s.active--
	}
}

func payloadString(event interfaces.Event, key string) (string, bool) {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return "", false
	}
	v, ok := payload[key].(string)
	return v, ok
}
