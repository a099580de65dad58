// Package store persists presence state, one row per tracked identity.
package store

import (
	"context"
	"time"

	"gatewarden/internal/presence"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
)

// ErrStaleState signals that a conditional flip found a different current
// status than expected. The caller re-reads under its lock and retries.
var ErrStaleState = dErrors.New(dErrors.CodeConflict, "presence state changed underneath the flip")

// Store is the presence system of record.
type Store interface {
	// Get returns the identity's current state. Identities with no row
	// read as OUT with a zero transition time.
	Get(ctx context.Context, identityID id.IdentityID) (presence.State, error)

	// Flip transitions the identity from expected to expected.Toggled(),
	// stamping transitionAt. Fails with ErrStaleState if the stored status
	// is not the expected one.
	Flip(ctx context.Context, identityID id.IdentityID, expected presence.Status, transitionAt time.Time) (presence.State, error)

	// CountIn returns how many tracked identities are currently IN.
	CountIn(ctx context.Context) (int, error)
}
