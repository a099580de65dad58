// Package handler exposes day scholar presence over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatewarden/internal/platform/middleware"
	"gatewarden/internal/presence"
	"gatewarden/internal/transport/http/shared"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
)

// Service is the slice of the presence service the handler calls.
type Service interface {
	Toggle(ctx context.Context, identityID id.IdentityID) (presence.ToggleResult, error)
	Roster(ctx context.Context) ([]presence.RosterEntry, error)
}

// Handler handles presence endpoints.
type Handler struct {
	presence Service
	logger   *slog.Logger
}

func New(presenceSvc Service, logger *slog.Logger) *Handler {
	return &Handler{presence: presenceSvc, logger: logger}
}

// Register registers the presence routes, all staff only.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(h.logger))
		r.Post("/api/scholars/{identityID}/toggle", h.handleToggle)
		r.Get("/api/scholars", h.handleRoster)
	})
}

type toggleResponse struct {
	IdentityID       string `json:"identityId"`
	Status           string `json:"status"`
	LastTransitionAt string `json:"lastTransitionAt"`
	EventID          string `json:"eventId"`
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid identity id"))
		return
	}

	result, err := h.presence.Toggle(ctx, identityID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, toggleResponse{
		IdentityID:       result.State.IdentityID.String(),
		Status:           string(result.State.Status),
		LastTransitionAt: result.State.LastTransitionAt.UTC().Format(time.RFC3339Nano),
		EventID:          result.EventID.String(),
	})
}

type rosterEntryResponse struct {
	IdentityID       string `json:"identityId"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	LastTransitionAt string `json:"lastTransitionAt,omitempty"`
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	entries, err := h.presence.Roster(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := make([]rosterEntryResponse, 0, len(entries))
	for _, entry := range entries {
		er := rosterEntryResponse{
			IdentityID: entry.IdentityID.String(),
			Name:       entry.Name,
			Status:     string(entry.Status),
		}
		if !entry.LastTransitionAt.IsZero() {
			er.LastTransitionAt = entry.LastTransitionAt.UTC().Format(time.RFC3339Nano)
		}
		resp = append(resp, er)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}
