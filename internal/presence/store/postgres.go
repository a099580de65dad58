package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gatewarden/internal/presence"
	id "gatewarden/pkg/domain"
)

// PostgresStore persists presence state in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE presence_states (
//	    identity_id        UUID PRIMARY KEY,
//	    status             TEXT NOT NULL,
//	    last_transition_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, identityID id.IdentityID) (presence.State, error) {
	var (
		status       string
		transitionAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, last_transition_at FROM presence_states WHERE identity_id = $1`,
		uuid.UUID(identityID),
	).Scan(&status, &transitionAt)
	if errors.Is(err, sql.ErrNoRows) {
		return presence.State{IdentityID: identityID, Status: presence.StatusOut}, nil
	}
	if err != nil {
		return presence.State{}, fmt.Errorf("select presence state: %w", err)
	}
	return presence.State{
		IdentityID:       identityID,
		Status:           presence.Status(status),
		LastTransitionAt: transitionAt,
	}, nil
}

// Flip is status-conditional: the UPDATE (or conflict arm of the INSERT)
// only fires when the stored status matches expected, so two racing toggles
// cannot both succeed.
func (s *PostgresStore) Flip(ctx context.Context, identityID id.IdentityID, expected presence.Status, transitionAt time.Time) (presence.State, error) {
	next := expected.Toggled()

	var result sql.Result
	var err error
	if expected == presence.StatusOut {
		// A missing row counts as OUT, so an OUT->IN flip may insert.
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO presence_states (identity_id, status, last_transition_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (identity_id) DO UPDATE
			SET status = EXCLUDED.status, last_transition_at = EXCLUDED.last_transition_at
			WHERE presence_states.status = $4
		`, uuid.UUID(identityID), string(next), transitionAt, string(expected))
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE presence_states
			SET status = $2, last_transition_at = $3
			WHERE identity_id = $1 AND status = $4
		`, uuid.UUID(identityID), string(next), transitionAt, string(expected))
	}
	if err != nil {
		return presence.State{}, fmt.Errorf("flip presence state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return presence.State{}, fmt.Errorf("flip presence state: %w", err)
	}
	if affected == 0 {
		return presence.State{}, ErrStaleState
	}

	return presence.State{
		IdentityID:       identityID,
		Status:           next,
		LastTransitionAt: transitionAt,
	}, nil
}

func (s *PostgresStore) CountIn(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM presence_states WHERE status = $1`,
		string(presence.StatusIn),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count present identities: %w", err)
	}
	return count, nil
}
