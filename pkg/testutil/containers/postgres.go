//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
    id                UUID PRIMARY KEY,
    owner_identity_id UUID NOT NULL,
    kind              TEXT NOT NULL,
    natural_key       TEXT NOT NULL,
    verification_hash TEXT NOT NULL DEFAULT '',
    issued_at         TIMESTAMPTZ,
    active            BOOLEAN NOT NULL DEFAULT TRUE,
    stolen            BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL,
    UNIQUE (kind, natural_key)
);

CREATE TABLE IF NOT EXISTS gate_events (
    id                    UUID PRIMARY KEY,
    event_type            TEXT NOT NULL,
    result_status         TEXT NOT NULL,
    subject_credential_id UUID,
    subject_identity_id   UUID,
    subject_plate         TEXT NOT NULL DEFAULT '',
    actor_identity_id     UUID,
    visitor               BOOLEAN NOT NULL DEFAULT FALSE,
    timestamp             TIMESTAMPTZ NOT NULL,
    location              TEXT NOT NULL DEFAULT '',
    notes                 TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS gate_events_timestamp_idx ON gate_events (timestamp DESC, id);

CREATE TABLE IF NOT EXISTS presence_states (
    identity_id        UUID PRIMARY KEY,
    status             TEXT NOT NULL,
    last_transition_at TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// service schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gatewarden_test"),
		tcpostgres.WithUsername("gatewarden"),
		tcpostgres.WithPassword("gatewarden"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, DSN: dsn, DB: db}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateTables clears the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
