package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Push channel
	r.Get("/ws", s.hub.HandleWS)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Simulation control
		r.Route("/simulation", func(r chi.Router) {
			r.Get("/", s.HandleGetState)
			r.Post("/start", s.HandleStart)
			r.Post("/pause", s.HandlePause)
			r.Post("/reset", s.HandleReset)
			r.Put("/attack", s.HandleSetAttack)
			r.Put("/defense", s.HandleSetDefense)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.HandleListDevices)
				r.Get("/{id}", s.HandleGetDevice)
			})
		})

		// Event archive
		r.Get("/events", s.HandleListEvents)
	})
}
