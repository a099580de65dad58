package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatewarden/internal/ledger"
	id "gatewarden/pkg/domain"
)

// PostgresStore persists gate events in PostgreSQL. Only INSERT and SELECT
// statements exist in this file; history cannot be rewritten from here.
//
// Schema:
//
//	CREATE TABLE gate_events (
//	    id                    UUID PRIMARY KEY,
//	    event_type            TEXT NOT NULL,
//	    result_status         TEXT NOT NULL,
//	    subject_credential_id UUID,
//	    subject_identity_id   UUID,
//	    subject_plate         TEXT NOT NULL DEFAULT '',
//	    actor_identity_id     UUID,
//	    visitor               BOOLEAN NOT NULL DEFAULT FALSE,
//	    timestamp             TIMESTAMPTZ NOT NULL,
//	    location              TEXT NOT NULL DEFAULT '',
//	    notes                 TEXT NOT NULL DEFAULT ''
//	);
//	CREATE INDEX gate_events_timestamp_idx ON gate_events (timestamp DESC, id);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event ledger.GateEvent) error {
	query := `
		INSERT INTO gate_events (
			id, event_type, result_status,
			subject_credential_id, subject_identity_id, subject_plate,
			actor_identity_id, visitor, timestamp, location, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		string(event.Type),
		string(event.Status),
		nullCredentialID(event.SubjectCredentialID),
		nullIdentityID(event.SubjectIdentityID),
		event.SubjectPlate,
		nullIdentityID(event.ActorID),
		event.Visitor,
		event.Timestamp,
		event.Location,
		event.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert gate event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter ledger.Filter) (ledger.Page, error) {
	filter = filter.Normalize()

	where := make([]string, 0, 6)
	args := make([]any, 0, 8)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != "" {
		where = append(where, "event_type = "+arg(string(filter.Type)))
	}
	if filter.Status != "" {
		where = append(where, "result_status = "+arg(string(filter.Status)))
	}
	if filter.ActorID != nil {
		where = append(where, "actor_identity_id = "+arg(uuid.UUID(*filter.ActorID)))
	}
	if filter.Subject != "" {
		p := arg(filter.Subject)
		where = append(where, fmt.Sprintf(
			"(subject_credential_id::text = %s OR subject_identity_id::text = %s OR subject_plate = %s)", p, p, p))
	}
	if !filter.From.IsZero() {
		where = append(where, "timestamp >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "timestamp <= "+arg(filter.To))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM gate_events" + clause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return ledger.Page{}, fmt.Errorf("count gate events: %w", err)
	}

	query := "SELECT id, event_type, result_status, subject_credential_id, subject_identity_id, subject_plate, actor_identity_id, visitor, timestamp, location, notes FROM gate_events" +
		clause +
		" ORDER BY timestamp DESC, id" +
		" LIMIT " + arg(filter.PageSize) +
		" OFFSET " + arg((filter.Page-1)*filter.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.Page{}, fmt.Errorf("query gate events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return ledger.Page{}, err
	}

	return ledger.Page{
		Events:   events,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *PostgresStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gate_events WHERE timestamp >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count gate events: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountAlertsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gate_events
		 WHERE timestamp >= $1 AND result_status IN ($2, $3, $4)`,
		since,
		string(ledger.StatusInvalidHash),
		string(ledger.StatusUserMismatch),
		string(ledger.StatusStolen),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count gate alerts: %w", err)
	}
	return count, nil
}

func scanEvents(rows *sql.Rows) ([]ledger.GateEvent, error) {
	var events []ledger.GateEvent
	for rows.Next() {
		var (
			event     ledger.GateEvent
			eventID   uuid.UUID
			eventType string
			status    string
			credID    uuid.NullUUID
			subjectID uuid.NullUUID
			actorID   uuid.NullUUID
		)
		err := rows.Scan(
			&eventID,
			&eventType,
			&status,
			&credID,
			&subjectID,
			&event.SubjectPlate,
			&actorID,
			&event.Visitor,
			&event.Timestamp,
			&event.Location,
			&event.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan gate event: %w", err)
		}
		event.ID = id.EventID(eventID)
		event.Type = ledger.EventType(eventType)
		event.Status = ledger.ResultStatus(status)
		if credID.Valid {
			c := id.CredentialID(credID.UUID)
			event.SubjectCredentialID = &c
		}
		if subjectID.Valid {
			s := id.IdentityID(subjectID.UUID)
			event.SubjectIdentityID = &s
		}
		if actorID.Valid {
			a := id.IdentityID(actorID.UUID)
			event.ActorID = &a
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gate events: %w", err)
	}
	return events, nil
}

func nullCredentialID(credID *id.CredentialID) any {
	if credID == nil {
		return nil
	}
	return uuid.UUID(*credID)
}

func nullIdentityID(identityID *id.IdentityID) any {
	if identityID == nil {
		return nil
	}
	return uuid.UUID(*identityID)
}
