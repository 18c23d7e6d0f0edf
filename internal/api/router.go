package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/weddingcue-core/internal/auth"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// External scheduler hook, authenticated by the cron secret.
		r.With(s.cronAuthMiddleware).Get("/cron/check-timers", s.handleCronCheckTimers)

		// WebSocket authenticates with ?token= inside the handler.
		r.Get(s.wsPath(), s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)

			// Reads
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermTimelineRead))
				r.Get("/events", s.handleListEvents)
				r.Get("/events/{id}/timeline", s.handleGetTimeline)
				r.Get("/events/{id}/current", s.handleGetCurrent)
				r.Get("/timers/{id}/actions/due", s.handleDueActions)
			})

			// Player clients report played cues.
			r.With(s.requirePermission(auth.PermActionExecute)).
				Post("/actions/{id}/executed", s.handleActionExecuted)

			// Day-of operation
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermTimelineOperate))
				r.Post("/events/{id}/start", s.handleStartWedding)
				r.Post("/events/{id}/sweep", s.handleSweepEvent)
				r.Post("/timers/{id}/start", s.handleStartTimer)
				r.Post("/timers/{id}/start-cue", s.handleStartCue)
				r.Post("/timers/{id}/complete", s.handleCompleteTimer)
				r.Post("/timers/{id}/adjust", s.handleAdjustTimer)
			})

			// Rehearsal and administration
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermTimelineAdmin))
				r.Post("/events/{id}/reset", s.handleResetEvent)
				r.Post("/events/{id}/rebase", s.handleRebaseEvent)
				r.Post("/timers/{id}/jump", s.handleJumpToTimer)
			})

			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// wsPath returns the configured WebSocket path, "/ws" by default.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
