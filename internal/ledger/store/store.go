// Package store persists gate events. The interface exposes Append and
// Query only; immutability of history is architectural, not conventional.
package store

import (
	"context"
	"time"

	"gatewarden/internal/ledger"
)

// Store is the durable gate-event log.
type Store interface {
	// Append atomically persists one event. No partial writes: the event
	// is either fully recorded or the call errors.
	Append(ctx context.Context, event ledger.GateEvent) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, filter ledger.Filter) (ledger.Page, error)

	// CountSince returns the number of events at or after the given time.
	CountSince(ctx context.Context, since time.Time) (int, error)

	// CountAlertsSince returns the number of failure-classified events
	// (invalid hash, user mismatch, stolen) at or after the given time.
	CountAlertsSince(ctx context.Context, since time.Time) (int, error)
}
