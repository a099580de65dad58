package models

import (
	"encoding/json"
	"time"

	id "gatewarden/pkg/domain"
)

// Credential is one registered asset or vehicle bound to an owning identity.
// Never deleted, only deactivated.
type Credential struct {
	ID         id.CredentialID
	OwnerID    id.IdentityID
	Kind       id.Kind
	NaturalKey string // serial number or plate number, unique within kind

	// VerificationHash is computed exactly once at issuance and immutable
	// thereafter. Empty until the first issue call.
	VerificationHash string
	IssuedAt         time.Time

	Active bool
	Stolen bool

	CreatedAt time.Time
}

// Issued reports whether the credential already carries its hash.
func (c Credential) Issued() bool {
	return c.VerificationHash != ""
}

// QRPayload is the fixed JSON shape encoded into printed QR codes.
type QRPayload struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// PayloadFor builds the wire payload for an issued credential.
func PayloadFor(c Credential) QRPayload {
	return QRPayload{
		Type:      c.Kind.String(),
		ID:        c.ID.String(),
		UserID:    c.OwnerID.String(),
		Hash:      c.VerificationHash,
		Timestamp: c.IssuedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Encode renders the payload as the QR code string.
func (p QRPayload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
