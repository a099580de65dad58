package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed UUID wrappers keep credential, identity, and event ids from being
// swapped at call sites. Each parses from the canonical string form.

// CredentialID identifies a registered asset or vehicle credential.
type CredentialID uuid.UUID

// IdentityID identifies a member, guard, or admin in the external directory.
type IdentityID uuid.UUID

// EventID identifies one gate ledger row. Generated independently per event
// so concurrent writers never contend on a shared counter.
type EventID uuid.UUID

// NewCredentialID returns a random credential id.
func NewCredentialID() CredentialID {
	return CredentialID(uuid.New())
}

// NewIdentityID returns a random identity id. Production identities come
// from the external directory; this exists for seeding and tests.
func NewIdentityID() IdentityID {
	return IdentityID(uuid.New())
}

// NewEventID returns a random event id.
func NewEventID() EventID {
	return EventID(uuid.New())
}

// ParseCredentialID validates and returns a CredentialID.
func ParseCredentialID(s string) (CredentialID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CredentialID{}, fmt.Errorf("invalid credential id %q: %w", s, err)
	}
	return CredentialID(u), nil
}

// ParseIdentityID validates and returns an IdentityID.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return IdentityID{}, fmt.Errorf("invalid identity id %q: %w", s, err)
	}
	return IdentityID(u), nil
}

func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id IdentityID) String() string   { return uuid.UUID(id).String() }
func (id EventID) String() string      { return uuid.UUID(id).String() }

func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id IdentityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
