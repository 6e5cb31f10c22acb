package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/models"
)

// PhotoHandler proxies place photos so provider keys stay server-side
type PhotoHandler struct {
	photos       PhotoFetcher
	defaultWidth int
	logger       arbor.ILogger
}

// NewPhotoHandler creates a PhotoHandler
func NewPhotoHandler(photos PhotoFetcher, defaultWidth int, logger arbor.ILogger) *PhotoHandler {
	return &PhotoHandler{
		photos:       photos,
		defaultWidth: defaultWidth,
		logger:       logger,
	}
}

// MediaHandler handles GET /api/photos/media?ref=<photoRef>[&maxWidthPx=N]
func (h *PhotoHandler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ref := r.URL.Query().Get("ref")
	if ref == "" {
		WriteError(w, http.StatusBadRequest, "ref is required")
		return
	}
	if !models.ValidPhotoRef(ref) {
		WriteError(w, http.StatusBadRequest, "ref must be a place photo name")
		return
	}

	width := h.defaultWidth
	if raw := r.URL.Query().Get("maxWidthPx"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 4800 {
			width = v
		}
	}

	photo, err := h.photos.FetchPhoto(r.Context(), ref, width)
	if errors.Is(err, models.ErrInvalidPhotoRef) {
		WriteError(w, http.StatusBadRequest, "ref must be a place photo name")
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("ref", ref).Msg("Photo proxy fetch failed")
		WriteError(w, http.StatusBadGateway, "photo unavailable")
		return
	}

	w.Header().Set("Content-Type", photo.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(photo.Data)
}
