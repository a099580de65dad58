// Package handler exposes credential registration and issuance over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatewarden/internal/credential/issuer"
	"gatewarden/internal/credential/models"
	"gatewarden/internal/transport/http/shared"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

// Service is the slice of the issuer the handler calls.
type Service interface {
	Register(ctx context.Context, input issuer.RegisterInput) (models.Credential, error)
	Get(ctx context.Context, credentialID id.CredentialID) (models.Credential, error)
	Issue(ctx context.Context, credentialID id.CredentialID) (issuer.IssueResult, error)
}

// Handler handles credential endpoints.
type Handler struct {
	credentials Service
	logger      *slog.Logger
}

func New(credentials Service, logger *slog.Logger) *Handler {
	return &Handler{credentials: credentials, logger: logger}
}

// Register registers the credential routes. The router is expected to carry
// the auth middleware already.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/credentials", h.handleCreate)
	r.Post("/api/credentials/{credentialID}/reissue", h.handleReissue)
}

type createRequest struct {
	Kind       string `json:"kind"`
	NaturalKey string `json:"naturalKey"`
	OwnerID    string `json:"ownerId"`
}

type credentialResponse struct {
	ID         string `json:"id"`
	OwnerID    string `json:"ownerId"`
	Kind       string `json:"kind"`
	NaturalKey string `json:"naturalKey"`
	Hash       string `json:"hash"`
	Payload    string `json:"payload"`
	IssuedAt   string `json:"issuedAt"`
}

func toResponse(result issuer.IssueResult) credentialResponse {
	c := result.Credential
	return credentialResponse{
		ID:         c.ID.String(),
		OwnerID:    c.OwnerID.String(),
		Kind:       c.Kind.String(),
		NaturalKey: c.NaturalKey,
		Hash:       result.Hash,
		Payload:    result.Payload,
		IssuedAt:   c.IssuedAt.UTC().Format(time.RFC3339Nano),
	}
}

// handleCreate registers a credential and issues its token in one request.
// Members may only register credentials they own themselves.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	kind, err := id.ParseKind(req.Kind)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "kind must be asset or vehicle"))
		return
	}
	ownerID, err := id.ParseIdentityID(req.OwnerID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid owner identity id"))
		return
	}

	if err := h.authorizeOwner(ctx, ownerID); err != nil {
		shared.WriteError(w, err)
		return
	}

	credential, err := h.credentials.Register(ctx, issuer.RegisterInput{
		Kind:       kind,
		NaturalKey: req.NaturalKey,
		OwnerID:    ownerID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "credential registration rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	result, err := h.credentials.Issue(ctx, credential.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "issuance failed after registration",
			"credential_id", credential.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toResponse(result))
}

// handleReissue returns the stored token for an already issued credential,
// or issues it if registration never completed. The hash never changes.
func (h *Handler) handleReissue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid credential id"))
		return
	}

	credential, err := h.credentials.Get(ctx, credentialID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.authorizeOwner(ctx, credential.OwnerID); err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.credentials.Issue(ctx, credentialID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, toResponse(result))
}

func (h *Handler) authorizeOwner(ctx context.Context, ownerID id.IdentityID) error {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !actor.IsStaff() && actor.ID != ownerID {
		return dErrors.New(dErrors.CodeForbidden, "members may only manage their own credentials")
	}
	return nil
}
