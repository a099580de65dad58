package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gatewarden/internal/credential/models"
	id "gatewarden/pkg/domain"
)

// PostgresStore persists credentials in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE credentials (
//	    id                UUID PRIMARY KEY,
//	    owner_identity_id UUID NOT NULL,
//	    kind              TEXT NOT NULL,
//	    natural_key       TEXT NOT NULL,
//	    verification_hash TEXT NOT NULL DEFAULT '',
//	    issued_at         TIMESTAMPTZ,
//	    active            BOOLEAN NOT NULL DEFAULT TRUE,
//	    stolen            BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at        TIMESTAMPTZ NOT NULL,
//	    UNIQUE (kind, natural_key)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `id, owner_identity_id, kind, natural_key, verification_hash, issued_at, active, stolen, created_at`

func (s *PostgresStore) Create(ctx context.Context, credential models.Credential) error {
	query := `
		INSERT INTO credentials (id, owner_identity_id, kind, natural_key, verification_hash, issued_at, active, stolen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(credential.ID),
		uuid.UUID(credential.OwnerID),
		credential.Kind.String(),
		credential.NaturalKey,
		credential.VerificationHash,
		nullTime(credential.IssuedAt),
		credential.Active,
		credential.Stolen,
		credential.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(credentialID)))
}

func (s *PostgresStore) FindActiveByID(ctx context.Context, credentialID id.CredentialID, kind id.Kind) (models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1 AND kind = $2 AND active`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(credentialID), kind.String()))
}

func (s *PostgresStore) FindActiveByPlate(ctx context.Context, plate string) (models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE kind = $1 AND natural_key = $2 AND active`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id.KindVehicle.String(), plate))
}

// SaveIssuance writes the hash only when none is present, so a concurrent
// double issue can never overwrite a printed QR code.
func (s *PostgresStore) SaveIssuance(ctx context.Context, credentialID id.CredentialID, hash string, issuedAt time.Time) error {
	query := `
		UPDATE credentials
		SET verification_hash = $2, issued_at = $3
		WHERE id = $1 AND verification_hash = ''
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(credentialID), hash, issuedAt)
	if err != nil {
		return fmt.Errorf("save issuance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save issuance rows: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, credentialID); err != nil {
			return err
		}
		return ErrAlreadyIssued
	}
	return nil
}

func (s *PostgresStore) CountActiveByKind(ctx context.Context) (map[id.Kind]int, error) {
	query := `SELECT kind, COUNT(*) FROM credentials WHERE active GROUP BY kind`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count credentials: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.Kind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan credential count: %w", err)
		}
		counts[id.Kind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (models.Credential, error) {
	var (
		credential models.Credential
		credID     uuid.UUID
		ownerID    uuid.UUID
		kind       string
		issuedAt   sql.NullTime
	)
	err := row.Scan(
		&credID,
		&ownerID,
		&kind,
		&credential.NaturalKey,
		&credential.VerificationHash,
		&issuedAt,
		&credential.Active,
		&credential.Stolen,
		&credential.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, ErrNotFound
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	credential.ID = id.CredentialID(credID)
	credential.OwnerID = id.IdentityID(ownerID)
	credential.Kind = id.Kind(kind)
	if issuedAt.Valid {
		credential.IssuedAt = issuedAt.Time
	}
	return credential, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
