package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

// DriftHandler serves the discovery pipeline as a Server-Sent-Events stream
type DriftHandler struct {
	runner DiscoveryRunner
	logger arbor.ILogger
}

// NewDriftHandler creates a DriftHandler
func NewDriftHandler(runner DiscoveryRunner, logger arbor.ILogger) *DriftHandler {
	return &DriftHandler{
		runner: runner,
		logger: logger,
	}
}

// StreamHandler handles POST /api/drift.
// Bad input is rejected with 400 before any stream bytes are sent.
func (h *DriftHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body models.SearchRequestBody
	if err := DecodeJSONBody(w, r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := body.Validate(h.runner.DefaultRadius())
	if err != nil {
		h.logger.Debug().Err(err).Msg("Rejected drift request")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, err := stream.NewSSEWriter(w, h.logger)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The run outlives a disconnected client; the pipeline bounds its own duration
	result := h.runner.Execute(context.WithoutCancel(r.Context()), req, sse)

	h.logger.Debug().
		Str("request_id", result.RequestID).
		Int("frames", sse.Written()).
		Msg("Drift stream closed")
}
