package gate

import (
	"gatewarden/internal/credential/models"
	"gatewarden/internal/ledger"
	id "gatewarden/pkg/domain"
)

// ScanPayload is the decoded QR wire payload handed to the verifier.
type ScanPayload struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// VerifyResult is the classification of one scan. Wrong-but-well-formed
// payloads are results, not errors; they are always written to the ledger
// before being returned.
type VerifyResult struct {
	Result     ledger.ResultStatus
	Credential *models.Credential
	EventID    id.EventID
}

// PlateClassification is the outcome of a bare plate-number scan.
type PlateClassification struct {
	Result     ledger.ResultStatus // VALID, STOLEN, or VISITOR
	Credential *models.Credential
	EventID    id.EventID
}

// PlateInput carries the guard's plate entry.
type PlateInput struct {
	PlateNumber string
	Location    string
	Notes       string

	// Exit records a VEHICLE_EXIT instead of an entry.
	Exit bool
}

// VisitorInput carries a manual visitor gate record.
type VisitorInput struct {
	Name     string
	IDNumber string
	Purpose  string
	Location string
	Exit     bool
}

// AlertInput carries a manually raised security alert.
type AlertInput struct {
	Notes    string
	Location string
	// Subject is optional free text (plate, badge number) identifying
	// what the alert concerns.
	Subject string
}
