// Package gate holds the verification decision engine and the plate
// resolver. Classification outcomes are first-class results: they are
// durably logged to the ledger and then returned, never raised as errors.
package gate

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gatewarden/internal/credential/models"
	credstore "gatewarden/internal/credential/store"
	"gatewarden/internal/ledger"
	"gatewarden/internal/platform/metrics"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

var tracer = otel.Tracer("gatewarden/internal/gate")

// Ledger is the slice of the ledger service the gate needs.
type Ledger interface {
	Append(ctx context.Context, event ledger.GateEvent) (id.EventID, error)
}

// Service classifies scans against the credential store and records every
// attempt.
type Service struct {
	credentials credstore.Store
	events      Ledger
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(credentials credstore.Store, events Ledger, logger *slog.Logger, opts ...Option) (*Service, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if events == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	svc := &Service{credentials: credentials, events: events, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Verify classifies a scanned payload. Checks apply in strict precedence:
// MALFORMED, NOT_FOUND, INVALID_HASH, USER_MISMATCH, STOLEN, VALID — the
// first match wins. Exactly one gate event is appended for every call that
// resolves a subject; only a payload with no usable id is rejected before
// the ledger is touched.
func (s *Service) Verify(ctx context.Context, payload ScanPayload) (VerifyResult, error) {
	ctx, span := tracer.Start(ctx, "gate.verify")
	defer span.End()

	kind, kindErr := id.ParseKind(payload.Type)
	malformed := kindErr != nil ||
		payload.ID == "" || payload.UserID == "" || payload.Hash == ""

	credentialID, idErr := id.ParseCredentialID(payload.ID)
	if idErr != nil {
		// No resolvable subject: reject before any ledger write.
		return VerifyResult{}, dErrors.New(dErrors.CodeValidation, "payload has no usable credential id")
	}

	if malformed {
		return s.conclude(ctx, span, eventTypeFor(kind, kindErr == nil), ledger.StatusMalformed, credentialID, nil)
	}

	credential, err := s.credentials.FindActiveByID(ctx, credentialID, kind)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return s.conclude(ctx, span, eventTypeFor(kind, true), ledger.StatusNotFound, credentialID, nil)
		}
		return VerifyResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}

	eventType := eventTypeFor(kind, true)
	switch {
	case subtle.ConstantTimeCompare([]byte(credential.VerificationHash), []byte(payload.Hash)) != 1:
		return s.conclude(ctx, span, eventType, ledger.StatusInvalidHash, credentialID, &credential)
	case credential.OwnerID.String() != payload.UserID:
		return s.conclude(ctx, span, eventType, ledger.StatusUserMismatch, credentialID, &credential)
	case credential.Stolen:
		return s.conclude(ctx, span, eventType, ledger.StatusStolen, credentialID, &credential)
	default:
		return s.conclude(ctx, span, eventType, ledger.StatusValid, credentialID, &credential)
	}
}

// ResolvePlate classifies a bare plate-number scan. Unmatched plates are an
// expected outcome, logged as visitors, never an error.
func (s *Service) ResolvePlate(ctx context.Context, input PlateInput) (PlateClassification, error) {
	ctx, span := tracer.Start(ctx, "gate.resolve_plate")
	defer span.End()

	plate := strings.ToUpper(strings.TrimSpace(input.PlateNumber))
	if plate == "" {
		return PlateClassification{}, dErrors.New(dErrors.CodeValidation, "plate number is required")
	}

	eventType := ledger.EventVehicleEntry
	if input.Exit {
		eventType = ledger.EventVehicleExit
	}

	event := ledger.GateEvent{
		Type:     eventType,
		ActorID:  attributedActor(ctx),
		Location: input.Location,
		Notes:    input.Notes,
	}

	result := PlateClassification{}
	credential, err := s.credentials.FindActiveByPlate(ctx, plate)
	switch {
	case err == nil && credential.Stolen:
		result.Result = ledger.StatusStolen
		result.Credential = &credential
		credID := credential.ID
		event.SubjectCredentialID = &credID
	case err == nil:
		result.Result = ledger.StatusValid
		result.Credential = &credential
		credID := credential.ID
		event.SubjectCredentialID = &credID
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		result.Result = ledger.StatusVisitor
		event.SubjectPlate = plate
		event.Visitor = true
	default:
		return PlateClassification{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up plate")
	}
	event.Status = result.Result

	eventID, err := s.events.Append(ctx, event)
	if err != nil {
		return PlateClassification{}, err
	}
	result.EventID = eventID

	span.SetAttributes(attribute.String("gate.result", string(result.Result)))
	if s.metrics != nil {
		s.metrics.ObserveVerification(string(result.Result))
	}
	return result, nil
}

// RecordVisitor appends a visitor entry or exit event.
func (s *Service) RecordVisitor(ctx context.Context, input VisitorInput) (id.EventID, error) {
	if strings.TrimSpace(input.Name) == "" {
		return id.EventID{}, dErrors.New(dErrors.CodeValidation, "visitor name is required")
	}

	eventType := ledger.EventVisitorEntry
	if input.Exit {
		eventType = ledger.EventVisitorExit
	}

	notes := fmt.Sprintf("visitor %s", input.Name)
	if input.IDNumber != "" {
		notes += " (id " + input.IDNumber + ")"
	}
	if input.Purpose != "" {
		notes += ": " + input.Purpose
	}

	return s.events.Append(ctx, ledger.GateEvent{
		Type:     eventType,
		Status:   ledger.StatusVisitor,
		ActorID:  attributedActor(ctx),
		Visitor:  true,
		Location: input.Location,
		Notes:    notes,
	})
}

// RaiseAlert appends a manually raised security alert.
func (s *Service) RaiseAlert(ctx context.Context, input AlertInput) (id.EventID, error) {
	if strings.TrimSpace(input.Notes) == "" {
		return id.EventID{}, dErrors.New(dErrors.CodeValidation, "alert notes are required")
	}
	return s.events.Append(ctx, ledger.GateEvent{
		Type:         ledger.EventSecurityAlert,
		Status:       ledger.StatusValid,
		ActorID:      attributedActor(ctx),
		SubjectPlate: input.Subject,
		Location:     input.Location,
		Notes:        input.Notes,
	})
}

// conclude appends the verification event and packages the result. The
// append is unconditional: a classification that cannot be logged is an
// error, not a silent success.
func (s *Service) conclude(
	ctx context.Context,
	span trace.Span,
	eventType ledger.EventType,
	status ledger.ResultStatus,
	credentialID id.CredentialID,
	credential *models.Credential,
) (VerifyResult, error) {
	event := ledger.GateEvent{
		Type:                eventType,
		Status:              status,
		SubjectCredentialID: &credentialID,
		ActorID:             attributedActor(ctx),
	}

	eventID, err := s.events.Append(ctx, event)
	if err != nil {
		return VerifyResult{}, err
	}

	if status == ledger.StatusStolen || status == ledger.StatusInvalidHash || status == ledger.StatusUserMismatch {
		s.logger.WarnContext(ctx, "verification flagged",
			"result", string(status),
			"credential_id", credentialID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	span.SetAttributes(attribute.String("gate.result", string(status)))
	if s.metrics != nil {
		s.metrics.ObserveVerification(string(status))
	}
	return VerifyResult{Result: status, Credential: credential, EventID: eventID}, nil
}

// eventTypeFor derives the ledger event type from the scanned kind. A
// malformed type that still carried a subject id is logged as an alert.
func eventTypeFor(kind id.Kind, kindKnown bool) ledger.EventType {
	if !kindKnown {
		return ledger.EventSecurityAlert
	}
	if kind == id.KindVehicle {
		return ledger.EventVehicleEntry
	}
	return ledger.EventAssetVerify
}

// attributedActor returns the actor id only when the caller holds a staff
// role; other authenticated callers may verify but are not attributed.
func attributedActor(ctx context.Context) *id.IdentityID {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok || !actor.IsStaff() {
		return nil
	}
	actorID := actor.ID
	return &actorID
}
