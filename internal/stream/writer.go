package stream

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ternarybob/arbor"
)

// SSEWriter writes frames to an HTTP response as Server-Sent Events.
// After the first write failure (typically a client disconnect) it logs once
// and drops every later frame, so the pipeline can keep running.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  arbor.ILogger
	failed  bool
	written int
}

// NewSSEWriter sets the stream headers and returns a writer.
// Returns an error when the response cannot be flushed incrementally.
func NewSSEWriter(w http.ResponseWriter, logger arbor.ILogger) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported by response writer")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher, logger: logger}, nil
}

// WriteFrame encodes and flushes one frame
func (s *SSEWriter) WriteFrame(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return nil
	}

	data, err := Encode(f)
	if err != nil {
		s.logger.Error().Err(err).Str("frame", string(f.Type())).Msg("Failed to encode SSE frame")
		return err
	}

	if _, err := s.w.Write(data); err != nil {
		s.failed = true
		s.logger.Warn().Err(err).Str("frame", string(f.Type())).Int("written", s.written).Msg("Client stream closed, dropping remaining frames")
		return nil
	}
	s.flusher.Flush()
	s.written++
	return nil
}

// Written returns the number of frames delivered
func (s *SSEWriter) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Recorder collects frames in memory. Used by in-process callers and tests.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

// WriteFrame appends the frame
func (r *Recorder) WriteFrame(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

// Frames returns a copy of the recorded frames
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Types returns the recorded frame types in order
func (r *Recorder) Types() []FrameType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FrameType, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Type()
	}
	return out
}

// FuncWriter adapts a function to the frame writer contract
type FuncWriter func(Frame) error

// WriteFrame calls fn
func (fn FuncWriter) WriteFrame(f Frame) error {
	return fn(f)
}
