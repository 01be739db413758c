package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the chi router: global middleware first, then the
// versioned API tree with the auth boundary between public and protected
// routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public: liveness, login, and basic metrics for scrapers.
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/metrics", s.handleMetrics)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/states", s.handleListStates)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/state", s.handleGetDeviceState)
					r.Post("/command", s.handleSendCommand)
					r.Get("/scenes", s.handleListScenes)
					r.Get("/diy-scenes", s.handleListDIYScenes)
					r.Post("/scenes/activate", s.handleActivateScene)
				})
			})

			r.Post("/refresh", s.handleRefresh)

			r.Route("/scheduler", func(r chi.Router) {
				r.Get("/", s.handleSchedulerStatus)
				r.Post("/pause", s.handleSchedulerPause)
				r.Post("/resume", s.handleSchedulerResume)
			})

			r.Get("/system/ratelimit", s.handleRateLimit)

			// The upgrade handler checks the ticket itself; the JWT
			// middleware protects the ticket-issuing endpoint above.
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth answers liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
