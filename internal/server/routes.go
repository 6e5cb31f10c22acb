package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Discovery stream
	mux.HandleFunc("/api/drift", s.app.DriftHandler.StreamHandler) // POST - SSE frames
	mux.HandleFunc("/ws/drift", s.app.DriftWSHandler.HandleWebSocket)

	// Photo proxy
	mux.HandleFunc("/api/photos/media", s.app.PhotoHandler.MediaHandler)

	// System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
