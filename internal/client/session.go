package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

// Streamer runs one discovery request, delivering frames to fn
type Streamer interface {
	Stream(ctx context.Context, body models.SearchRequestBody, fn func(stream.Frame) error) error
}

// Session holds at most one active stream. Starting a search cancels the
// previous one, and frames from a superseded stream never reach the state.
type Session struct {
	streamer Streamer
	onChange func(State)

	mu     sync.Mutex
	token  string
	cancel context.CancelFunc
	state  State
}

// NewSession creates a session. onChange, when set, receives every new state.
func NewSession(streamer Streamer, onChange func(State)) *Session {
	return &Session{
		streamer: streamer,
		onChange: onChange,
		state:    State{Phase: PhaseIdle},
	}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the correlation token of the active search
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Search runs a new search to completion, cancelling any in-flight one.
// Cancellation returns nil; transport failures reset the state to idle
// with the error message and are returned.
func (s *Session) Search(ctx context.Context, body models.SearchRequestBody) error {
	ctx, cancel := context.WithCancel(ctx)
	token := s.begin(cancel)
	defer s.end(token, cancel)

	err := s.streamer.Stream(ctx, body, func(f stream.Frame) error {
		s.apply(token, func(st State) State { return Reduce(st, f) })
		return nil
	})

	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}

	s.apply(token, func(st State) State {
		st.Error = err.Error()
		st.Phase = PhaseIdle
		return st
	})
	return err
}

// Cancel aborts the active search without surfacing an error
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.token = ""
	if s.state.Phase != PhaseResults {
		s.state.Phase = PhaseIdle
	}
}

func (s *Session) begin(cancel context.CancelFunc) string {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	token := uuid.New().String()
	s.token = token
	s.cancel = cancel
	s.state = Started()
	state := s.state
	s.mu.Unlock()

	s.notify(state)
	return token
}

func (s *Session) end(token string, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.cancel = nil
	}
}

// apply runs fn under the lock only if token is still the active one
func (s *Session) apply(token string, fn func(State) State) {
	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		return
	}
	s.state = fn(s.state)
	state := s.state
	s.mu.Unlock()

	s.notify(state)
}

func (s *Session) notify(state State) {
	if s.onChange != nil {
		s.onChange(state)
	}
}
