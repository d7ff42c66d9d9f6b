package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all quantum routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/quantum", func(r chi.Router) {
		r.Post("/evaluate", h.HandleEvaluate)
		r.Post("/evaluate/batch", h.HandleEvaluateBatch)
		r.Post("/optimize", h.HandleOptimize)
		r.Get("/optimize/stream", h.HandleOptimizeStream)
		r.Get("/problems", h.HandleListProblems)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", h.HandleGetRun)
	})
}
