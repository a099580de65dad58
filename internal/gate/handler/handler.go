// Package handler exposes the gate operations over HTTP: scan verification,
// plate entry, visitor records, alerts, and the event log.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatewarden/internal/gate"
	"gatewarden/internal/ledger"
	"gatewarden/internal/platform/middleware"
	"gatewarden/internal/transport/http/shared"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

// Service is the slice of the gate service the handler calls.
type Service interface {
	Verify(ctx context.Context, payload gate.ScanPayload) (gate.VerifyResult, error)
	ResolvePlate(ctx context.Context, input gate.PlateInput) (gate.PlateClassification, error)
	RecordVisitor(ctx context.Context, input gate.VisitorInput) (id.EventID, error)
	RaiseAlert(ctx context.Context, input gate.AlertInput) (id.EventID, error)
}

// Ledger is the read side for the event log endpoint.
type Ledger interface {
	Query(ctx context.Context, filter ledger.Filter) (ledger.Page, error)
}

// Handler handles gate endpoints.
type Handler struct {
	gate   Service
	events Ledger
	logger *slog.Logger
}

func New(gateSvc Service, events Ledger, logger *slog.Logger) *Handler {
	return &Handler{gate: gateSvc, events: events, logger: logger}
}

// Register registers the gate routes. Verification is open to any
// authenticated caller; everything else is staff only.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/gate/verify", h.handleVerify)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(h.logger))
		r.Post("/api/gate/vehicle-entry", h.handlePlate(false))
		r.Post("/api/gate/vehicle-exit", h.handlePlate(true))
		r.Post("/api/gate/visitor-entry", h.handleVisitor(false))
		r.Post("/api/gate/visitor-exit", h.handleVisitor(true))
		r.Post("/api/gate/alert", h.handleAlert)
		r.Get("/api/gate/log", h.handleLog)
	})
}

type verifyResponse struct {
	Result  string         `json:"result"`
	EventID string         `json:"eventId"`
	Subject *verifySubject `json:"subject,omitempty"`
}

type verifySubject struct {
	CredentialID string `json:"credentialId"`
	OwnerID      string `json:"ownerId"`
	Kind         string `json:"kind"`
	NaturalKey   string `json:"naturalKey"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload gate.ScanPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.gate.Verify(ctx, payload)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := verifyResponse{Result: string(result.Result), EventID: result.EventID.String()}
	if result.Credential != nil {
		resp.Subject = &verifySubject{
			CredentialID: result.Credential.ID.String(),
			OwnerID:      result.Credential.OwnerID.String(),
			Kind:         result.Credential.Kind.String(),
			NaturalKey:   result.Credential.NaturalKey,
		}
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

type plateRequest struct {
	PlateNumber string `json:"plateNumber"`
	Location    string `json:"location"`
	Notes       string `json:"notes"`
}

type plateResponse struct {
	Result  string         `json:"result"`
	EventID string         `json:"eventId"`
	Subject *verifySubject `json:"subject,omitempty"`
}

func (h *Handler) handlePlate(exit bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req plateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}

		result, err := h.gate.ResolvePlate(ctx, gate.PlateInput{
			PlateNumber: req.PlateNumber,
			Location:    req.Location,
			Notes:       req.Notes,
			Exit:        exit,
		})
		if err != nil {
			shared.WriteError(w, err)
			return
		}

		resp := plateResponse{Result: string(result.Result), EventID: result.EventID.String()}
		if result.Credential != nil {
			resp.Subject = &verifySubject{
				CredentialID: result.Credential.ID.String(),
				OwnerID:      result.Credential.OwnerID.String(),
				Kind:         result.Credential.Kind.String(),
				NaturalKey:   result.Credential.NaturalKey,
			}
		}
		shared.WriteJSON(w, http.StatusOK, resp)
	}
}

type visitorRequest struct {
	Name     string `json:"name"`
	IDNumber string `json:"idNumber"`
	Purpose  string `json:"purpose"`
	Location string `json:"location"`
}

func (h *Handler) handleVisitor(exit bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req visitorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}

		eventID, err := h.gate.RecordVisitor(ctx, gate.VisitorInput{
			Name:     req.Name,
			IDNumber: req.IDNumber,
			Purpose:  req.Purpose,
			Location: req.Location,
			Exit:     exit,
		})
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusCreated, map[string]string{"eventId": eventID.String()})
	}
}

type alertRequest struct {
	Notes    string `json:"notes"`
	Location string `json:"location"`
	Subject  string `json:"subject"`
}

func (h *Handler) handleAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	eventID, err := h.gate.RaiseAlert(ctx, gate.AlertInput{
		Notes:    req.Notes,
		Location: req.Location,
		Subject:  req.Subject,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "security alert raised",
		"event_id", eventID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"eventId": eventID.String()})
}

type eventResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	CredentialID string `json:"credentialId,omitempty"`
	IdentityID   string `json:"identityId,omitempty"`
	Plate        string `json:"plate,omitempty"`
	ActorID      string `json:"actorId,omitempty"`
	Visitor      bool   `json:"visitor,omitempty"`
	Timestamp    string `json:"timestamp"`
	Location     string `json:"location,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type logResponse struct {
	Events   []eventResponse `json:"events"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := filterFromQuery(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	page, err := h.events.Query(ctx, filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := logResponse{
		Events:   make([]eventResponse, 0, len(page.Events)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, event := range page.Events {
		er := eventResponse{
			ID:        event.ID.String(),
			Type:      string(event.Type),
			Status:    string(event.Status),
			Plate:     event.SubjectPlate,
			Visitor:   event.Visitor,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Location:  event.Location,
			Notes:     event.Notes,
		}
		if event.SubjectCredentialID != nil {
			er.CredentialID = event.SubjectCredentialID.String()
		}
		if event.SubjectIdentityID != nil {
			er.IdentityID = event.SubjectIdentityID.String()
		}
		if event.ActorID != nil {
			er.ActorID = event.ActorID.String()
		}
		resp.Events = append(resp.Events, er)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func filterFromQuery(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	var filter ledger.Filter

	if v := q.Get("type"); v != "" {
		eventType := ledger.EventType(v)
		if !eventType.IsValid() {
			return ledger.Filter{}, dErrors.Newf(dErrors.CodeValidation, "unknown event type %q", v)
		}
		filter.Type = eventType
	}
	if v := q.Get("status"); v != "" {
		filter.Status = ledger.ResultStatus(v)
	}
	if v := q.Get("actor"); v != "" {
		actorID, err := id.ParseIdentityID(v)
		if err != nil {
			return ledger.Filter{}, dErrors.New(dErrors.CodeValidation, "invalid actor id")
		}
		filter.ActorID = &actorID
	}
	filter.Subject = q.Get("subject")

	if v := q.Get("start_date"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ledger.Filter{}, dErrors.New(dErrors.CodeValidation, "start_date must be RFC 3339")
		}
		filter.From = from
	}
	if v := q.Get("end_date"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ledger.Filter{}, dErrors.New(dErrors.CodeValidation, "end_date must be RFC 3339")
		}
		filter.To = to
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return ledger.Filter{}, dErrors.New(dErrors.CodeValidation, "page must be a positive integer")
		}
		filter.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return ledger.Filter{}, dErrors.New(dErrors.CodeValidation, "page_size must be a positive integer")
		}
		filter.PageSize = size
	}
	return filter, nil
}
