// Package issuer computes tamper-evident hashes for new credentials and
// produces their QR payloads. Issuance is an explicit step after the
// credential row is persisted; nothing fires implicitly on save.
package issuer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gatewarden/internal/blob"
	"gatewarden/internal/credential/models"
	"gatewarden/internal/credential/store"
	"gatewarden/internal/identity"
	"gatewarden/internal/platform/metrics"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

// Digest binds a credential to its natural key and owner at a fixed instant.
// Computed exactly once per credential; every verification compares against
// this stored value.
func Digest(credentialID id.CredentialID, naturalKey string, ownerID id.IdentityID, issuedAt time.Time) string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		credentialID.String(),
		naturalKey,
		ownerID.String(),
		issuedAt.UTC().Format(time.RFC3339Nano),
	)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Service registers credentials and issues their tokens.
type Service struct {
	store     store.Store
	directory identity.Directory
	blobs     blob.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithBlobStore(blobs blob.Store) Option {
	return func(s *Service) { s.blobs = blobs }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(credentials store.Store, directory identity.Directory, logger *slog.Logger, opts ...Option) (*Service, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("identity directory is required")
	}
	svc := &Service{
		store:     credentials,
		directory: directory,
		blobs:     blob.Noop{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterInput describes a credential to register.
type RegisterInput struct {
	Kind       id.Kind
	NaturalKey string
	OwnerID    id.IdentityID
}

// IssueResult is the outcome of an issuance.
type IssueResult struct {
	Credential models.Credential
	Hash       string
	Payload    string
}

// Register persists a new, not-yet-issued credential. Plate numbers are
// normalized at registration so gate lookups match byte for byte.
func (s *Service) Register(ctx context.Context, input RegisterInput) (models.Credential, error) {
	if !input.Kind.IsValid() {
		return models.Credential{}, dErrors.New(dErrors.CodeValidation, "kind must be asset or vehicle")
	}
	naturalKey := strings.TrimSpace(input.NaturalKey)
	if input.Kind == id.KindVehicle {
		naturalKey = strings.ToUpper(naturalKey)
	}
	if naturalKey == "" {
		return models.Credential{}, dErrors.New(dErrors.CodeValidation, "natural key is required")
	}
	if input.OwnerID.IsNil() {
		return models.Credential{}, dErrors.New(dErrors.CodeValidation, "owner identity id is required")
	}

	owner, err := s.directory.Get(ctx, input.OwnerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return models.Credential{}, dErrors.New(dErrors.CodeNotFound, "owner identity not found")
		}
		return models.Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve owner identity")
	}
	if !owner.Active {
		return models.Credential{}, dErrors.New(dErrors.CodeValidation, "owner identity is inactive")
	}

	credential := models.Credential{
		ID:         id.NewCredentialID(),
		OwnerID:    input.OwnerID,
		Kind:       input.Kind,
		NaturalKey: naturalKey,
		Active:     true,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, credential); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return models.Credential{}, err
		}
		return models.Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create credential")
	}
	return credential, nil
}

// Get loads a credential by id.
func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (models.Credential, error) {
	credential, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return models.Credential{}, err
		}
		return models.Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return credential, nil
}

// Issue computes and stores the verification hash, then builds the QR
// payload. Re-issuing an already issued credential returns the stored hash
// unchanged; a printed QR code is never invalidated.
func (s *Service) Issue(ctx context.Context, credentialID id.CredentialID) (IssueResult, error) {
	credential, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return IssueResult{}, err
		}
		return IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if credential.NaturalKey == "" {
		return IssueResult{}, dErrors.New(dErrors.CodeValidation, "credential has no natural key")
	}
	if credential.OwnerID.IsNil() {
		return IssueResult{}, dErrors.New(dErrors.CodeValidation, "credential has no owner")
	}

	if credential.Issued() {
		return s.result(credential)
	}

	issuedAt := requestcontext.Now(ctx)
	hash := Digest(credential.ID, credential.NaturalKey, credential.OwnerID, issuedAt)

	if err := s.store.SaveIssuance(ctx, credential.ID, hash, issuedAt); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			// Lost an issuance race; the stored hash wins.
			credential, err = s.store.FindByID(ctx, credential.ID)
			if err != nil {
				return IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload credential")
			}
			return s.result(credential)
		}
		return IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store issuance")
	}
	credential.VerificationHash = hash
	credential.IssuedAt = issuedAt

	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}

	result, err := s.result(credential)
	if err != nil {
		return IssueResult{}, err
	}

	// Artifact upload is best effort; the payload string is the contract.
	if err := s.blobs.PutPayload(ctx, credential.ID.String(), []byte(result.Payload)); err != nil {
		s.logger.WarnContext(ctx, "failed to store qr payload artifact",
			"credential_id", credential.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

func (s *Service) result(credential models.Credential) (IssueResult, error) {
	payload, err := models.PayloadFor(credential).Encode()
	if err != nil {
		return IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode payload")
	}
	return IssueResult{Credential: credential, Hash: credential.VerificationHash, Payload: payload}, nil
}
