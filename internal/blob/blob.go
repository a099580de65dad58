// Package blob is the narrow port onto the artifact storage collaborator.
// The issuer stores the QR payload keyed by credential id; rendering the
// scannable image is the collaborator's concern.
package blob

import "context"

// Store accepts QR payload artifacts keyed by credential id.
type Store interface {
	PutPayload(ctx context.Context, credentialID string, payload []byte) error
}

// Noop discards artifacts. Used when no bucket is configured; issuance is
// never blocked on artifact storage.
type Noop struct{}

func (Noop) PutPayload(context.Context, string, []byte) error { return nil }
