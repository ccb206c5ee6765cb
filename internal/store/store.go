package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/imagedrop/internal/pipeline"
	"github.com/andresmejia3/imagedrop/internal/types"
)

// Store is the PostgreSQL run ledger. A single connection is shared, so
// access is serialized.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the ledger table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id UUID PRIMARY KEY,
			tool TEXT NOT NULL,
			filename TEXT NOT NULL,
			declared_type TEXT NOT NULL,
			digest TEXT NOT NULL,
			state TEXT NOT NULL,
			failure_stage TEXT,
			artifact TEXT,
			width INT NOT NULL DEFAULT 0,
			height INT NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS pipeline_runs_started_at_idx ON pipeline_runs (started_at DESC);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close(ctx)
}

// RecordRun inserts one ledger entry. Re-recording the same ID is a no-op.
func (s *Store) RecordRun(ctx context.Context, run pipeline.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `
		INSERT INTO pipeline_runs (id, tool, filename, declared_type, digest, state, failure_stage, artifact, width, height, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`, run.ID, run.Tool, run.Filename, run.DeclaredType, run.Digest, run.State.String(),
		nullable(run.FailureStage), nullable(run.Artifact), run.Width, run.Height,
		run.StartedAt, run.Duration.Milliseconds())
	return err
}

// ListRuns returns the most recent runs first. A limit of zero or less returns all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT id, tool, filename, declared_type, digest, state, COALESCE(failure_stage, ''), COALESCE(artifact, ''), width, height, started_at, duration_ms
		FROM pipeline_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []pipeline.Run
	for rows.Next() {
		var (
			r     pipeline.Run
			id    uuid.UUID
			state string
			ms    int64
		)
		if err := rows.Scan(&id, &r.Tool, &r.Filename, &r.DeclaredType, &r.Digest, &state, &r.FailureStage, &r.Artifact, &r.Width, &r.Height, &r.StartedAt, &ms); err != nil {
			return nil, err
		}
		r.ID = id
		r.State = types.ParseUIState(state)
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Reset drops all application tables to clear the database state.
// The next New recreates them.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(ctx, `DROP TABLE IF EXISTS pipeline_runs CASCADE;`)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
