// Package store persists credentials. The stolen and active flags are
// mutated by the owning collaborator, not through this interface.
package store

import (
	"context"
	"time"

	"gatewarden/internal/credential/models"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across
	// implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "credential not found")

	// ErrDuplicateKey signals a natural-key collision within a kind.
	ErrDuplicateKey = dErrors.New(dErrors.CodeConflict, "natural key already registered")

	// ErrAlreadyIssued guards the write-once verification hash.
	ErrAlreadyIssued = dErrors.New(dErrors.CodeInvariantViolation, "credential already issued")
)

// Store is the credential system of record.
type Store interface {
	// Create persists a new credential. The natural key must be unique
	// within the credential's kind.
	Create(ctx context.Context, credential models.Credential) error

	// FindByID returns a credential regardless of active state.
	FindByID(ctx context.Context, credentialID id.CredentialID) (models.Credential, error)

	// FindActiveByID returns an active credential of the given kind.
	FindActiveByID(ctx context.Context, credentialID id.CredentialID, kind id.Kind) (models.Credential, error)

	// FindActiveByPlate looks up an active vehicle credential by its
	// normalized plate number.
	FindActiveByPlate(ctx context.Context, plate string) (models.Credential, error)

	// SaveIssuance stores the verification hash and issuance time. Fails
	// with ErrAlreadyIssued if a hash is already present; the hash is
	// write-once by construction.
	SaveIssuance(ctx context.Context, credentialID id.CredentialID, hash string, issuedAt time.Time) error

	// CountActiveByKind returns active credential counts for rollups.
	CountActiveByKind(ctx context.Context) (map[id.Kind]int, error)
}
