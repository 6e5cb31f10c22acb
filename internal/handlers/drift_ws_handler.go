package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

const (
	wsRequestTimeout = 30 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// DriftWebSocketHandler serves the discovery pipeline over a WebSocket.
// The first client message is the request body; every frame is sent as
// {"type": ..., "payload": ...} and the socket closes after the terminal frame.
type DriftWebSocketHandler struct {
	runner DiscoveryRunner
	logger arbor.ILogger
}

// NewDriftWebSocketHandler creates a DriftWebSocketHandler
func NewDriftWebSocketHandler(runner DiscoveryRunner, logger arbor.ILogger) *DriftWebSocketHandler {
	return &DriftWebSocketHandler{
		runner: runner,
		logger: logger,
	}
}

// HandleWebSocket handles GET /ws/drift
func (h *DriftWebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	writer := &wsFrameWriter{conn: conn, logger: h.logger}

	conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket closed before request")
		return
	}
	conn.SetReadDeadline(time.Time{})

	// Drain control frames so client close is observed
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				writer.markClosed()
				return
			}
		}
	}()

	var body models.SearchRequestBody
	if err := json.Unmarshal(data, &body); err != nil {
		writer.WriteFrame(stream.ErrorFrame{Message: "invalid JSON body: " + err.Error(), Phase: models.PhaseInterpreting})
		writer.close()
		return
	}

	result := h.runner.Run(context.WithoutCancel(r.Context()), body, writer)
	h.logger.Debug().Str("request_id", result.RequestID).Msg("Drift WebSocket run finished")
	writer.close()
}

// errWSClientGone is returned for frames written after the client went away
var errWSClientGone = errors.New("websocket client gone")

// wsFrameWriter sends envelopes and goes quiet after the first failure.
// Every dropped frame reports the failure that stopped the stream.
type wsFrameWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger arbor.ILogger
	err    error
}

func (w *wsFrameWriter) WriteFrame(f stream.Frame) error {
	env, err := stream.ToEnvelope(f)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}

	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		w.fail(err, f.Type())
		return w.err
	}
	if err := w.conn.WriteJSON(env); err != nil {
		w.fail(err, f.Type())
		return w.err
	}
	return nil
}

// fail records the first write error; callers hold mu
func (w *wsFrameWriter) fail(err error, frame stream.FrameType) {
	w.err = fmt.Errorf("%w: %v", errWSClientGone, err)
	w.logger.Warn().Err(err).Str("frame", string(frame)).Msg("WebSocket client gone, dropping remaining frames")
}

func (w *wsFrameWriter) markClosed() {
	w.mu.Lock()
	if w.err == nil {
		w.err = errWSClientGone
	}
	w.mu.Unlock()
}

// close sends a normal close frame unless the stream already failed
func (w *wsFrameWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	w.err = errWSClientGone
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete")
	if err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		w.logger.Debug().Err(err).Msg("Failed to send WebSocket close frame")
	}
}
