// Package presence tracks whether each day scholar is currently on site.
// One row per identity, flipped atomically between IN and OUT; the gate
// ledger carries the full transition history.
package presence

import (
	"time"

	id "gatewarden/pkg/domain"
)

// Status is the scholar's current side of the gate.
type Status string

const (
	StatusIn  Status = "IN"
	StatusOut Status = "OUT"
)

// Toggled returns the opposite status.
func (s Status) Toggled() Status {
	if s == StatusIn {
		return StatusOut
	}
	return StatusIn
}

// State is the current presence row for one identity. Identities with no
// row yet read as OUT.
type State struct {
	IdentityID       id.IdentityID
	Status           Status
	LastTransitionAt time.Time
}

// RosterEntry joins directory identity data with presence for the roster view.
type RosterEntry struct {
	IdentityID       id.IdentityID
	Name             string
	Status           Status
	LastTransitionAt time.Time
}
