// Package identity is the narrow port onto the external identity manager.
// This core only reads identities; creation, login, and role assignment live
// in the collaborator.
package identity

import (
	"context"

	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
)

// Identity is the read-only projection this core needs.
type Identity struct {
	ID     id.IdentityID
	Role   id.Role
	Name   string
	Active bool

	// DayScholar marks identities whose on-site presence is tracked.
	DayScholar bool
}

// ErrNotFound is returned when the directory has no record of an identity.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "identity not found")

// Directory resolves identities by id.
type Directory interface {
	Get(ctx context.Context, identityID id.IdentityID) (Identity, error)

	// ListDayScholars returns all active tracked identities, for the roster.
	ListDayScholars(ctx context.Context) ([]Identity, error)
}
