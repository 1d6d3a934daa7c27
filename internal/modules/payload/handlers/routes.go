package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers payload routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payload", func(r chi.Router) {
		r.Get("/latest", h.HandleGetLatest)
		r.Get("/history", h.HandleGetHistory)
		r.Get("/history/{id}", h.HandleGetSnapshot)
		r.Post("/refresh", h.HandleRefresh)
	})

	r.Post("/publish", h.HandlePublish)
}
