// Package handler exposes the dashboard rollups over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatewarden/internal/dashboard"
	"gatewarden/internal/platform/middleware"
	"gatewarden/internal/transport/http/shared"
)

// Service is the slice of the dashboard service the handler calls.
type Service interface {
	Stats(ctx context.Context) (dashboard.Stats, error)
}

// Handler handles dashboard endpoints.
type Handler struct {
	dashboard Service
	logger    *slog.Logger
}

func New(dashboardSvc Service, logger *slog.Logger) *Handler {
	return &Handler{dashboard: dashboardSvc, logger: logger}
}

// Register registers the dashboard routes, staff only.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(h.logger))
		r.Get("/api/dashboard/stats", h.handleStats)
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}
