package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk view routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/view", h.HandleGetView)
		r.Post("/view", h.HandlePostView)
		r.Get("/deltas", h.HandleGetDeltas)
		r.Get("/structure", h.HandleGetStructure)
	})
}
