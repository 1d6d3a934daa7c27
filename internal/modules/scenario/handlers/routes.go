package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the scenario session REST routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scenario/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Delete("/", h.HandleDeleteSession)
			r.Get("/view", h.HandleGetView)
			r.Put("/regime", h.HandleSetRegime)
			r.Put("/weights", h.HandleSetWeights)
			r.Post("/reset", h.HandleReset)
		})
	})
}

// RegisterStreamRoutes registers the websocket stream. It must be mounted
// outside request timeout and compression middleware.
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/scenario/stream/{id}", h.HandleStream)
}
