package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/hub", s.handleGetHub)

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.handleListZones)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetZone)
				r.Patch("/", s.handleUpdateZone)
				r.Get("/status", s.handleGetZoneStatus)
			})
		})

		r.Route("/components", func(r chi.Router) {
			r.Get("/", s.handleListComponents)
			r.Get("/{serial}", s.handleGetComponent)
		})

		r.Route("/weekprofiles", func(r chi.Router) {
			r.Get("/", s.handleListWeekProfiles)
			r.Get("/{id}", s.handleGetWeekProfile)
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/", s.handleListOverrides)
			r.Post("/", s.handleCreateOverride)
		})

		r.Get("/commands", s.handleListCommands)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
//
// GET /health
// Response: {"status": "ok"|"degraded", "version": "...", "hub": "connected"|...}
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	m := s.bridge.GetMetrics()
	status := "ok"
	if !m.Connected {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"hub":     m.Status,
	})
}
