// Package ledger is the append-only system of record for everything that
// happened at a gate. Corrections are made by appending compensating events,
// never by editing history; no update or delete entry point exists.
package ledger

import (
	"time"

	id "gatewarden/pkg/domain"
)

// EventType classifies a gate event.
type EventType string

const (
	EventAssetVerify   EventType = "ASSET_VERIFY"
	EventVehicleEntry  EventType = "VEHICLE_ENTRY"
	EventVehicleExit   EventType = "VEHICLE_EXIT"
	EventScholarIn     EventType = "SCHOLAR_IN"
	EventScholarOut    EventType = "SCHOLAR_OUT"
	EventVisitorEntry  EventType = "VISITOR_ENTRY"
	EventVisitorExit   EventType = "VISITOR_EXIT"
	EventSecurityAlert EventType = "SECURITY_ALERT"
)

// IsValid reports whether the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventAssetVerify, EventVehicleEntry, EventVehicleExit,
		EventScholarIn, EventScholarOut,
		EventVisitorEntry, EventVisitorExit, EventSecurityAlert:
		return true
	}
	return false
}

// ResultStatus records the classification the event captured.
type ResultStatus string

const (
	StatusValid        ResultStatus = "VALID"
	StatusNotFound     ResultStatus = "NOT_FOUND"
	StatusInvalidHash  ResultStatus = "INVALID_HASH"
	StatusUserMismatch ResultStatus = "USER_MISMATCH"
	StatusStolen       ResultStatus = "STOLEN"
	StatusMalformed    ResultStatus = "MALFORMED"
	StatusVisitor      ResultStatus = "VISITOR"
)

// GateEvent is one immutable audit record. At most one of the subject
// fields is populated, depending on what the scan resolved to.
type GateEvent struct {
	ID     id.EventID
	Type   EventType
	Status ResultStatus

	SubjectCredentialID *id.CredentialID
	SubjectIdentityID   *id.IdentityID
	SubjectPlate        string

	// ActorID is the guard or admin who performed the scan, when one was
	// attributable. Nil for self-service or unattributed scans.
	ActorID *id.IdentityID

	// Visitor marks events for subjects with no registered credential.
	Visitor bool

	Timestamp time.Time
	Location  string
	Notes     string
}

// Filter narrows a ledger query. Zero values mean "any".
type Filter struct {
	Type    EventType
	Status  ResultStatus
	ActorID *id.IdentityID
	// Subject matches any subject field: credential id, identity id, or
	// raw plate string.
	Subject string
	From    time.Time
	To      time.Time

	Page     int // 1-based; 0 means first page
	PageSize int // 0 means default
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps pagination to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Page is one page of events in descending timestamp order.
type Page struct {
	Events   []GateEvent
	Total    int
	Page     int
	PageSize int
}
