package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresmejia3/imagedrop/internal/pipeline"
	"github.com/andresmejia3/imagedrop/internal/types"
)

// TestStoreIntegration runs the ledger against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// testcontainers panics when the Docker socket is missing
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("imagedrop_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Test Scenarios ---

	start := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
	ok := pipeline.Run{
		ID:           uuid.New(),
		Tool:         "upscale",
		Filename:     "photo.heic",
		DeclaredType: "image/heic",
		Digest:       "abc",
		State:        types.StateResultReady,
		Artifact:     "upscaled_photo.png",
		Width:        800,
		Height:       600,
		StartedAt:    start,
		Duration:     1500 * time.Millisecond,
	}
	failed := pipeline.Run{
		ID:           uuid.New(),
		Tool:         "filter",
		Filename:     "broken.png",
		DeclaredType: "image/png",
		Digest:       "def",
		State:        types.StateError,
		FailureStage: "decode",
		StartedAt:    start.Add(time.Second),
		Duration:     5 * time.Millisecond,
	}

	for _, r := range []pipeline.Run{ok, failed} {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}
	// Idempotent on ID
	if err := s.RecordRun(ctx, ok); err != nil {
		t.Fatalf("RecordRun (duplicate) failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}

	// Newest first
	if runs[0].ID != failed.ID || runs[1].ID != ok.ID {
		t.Errorf("Unexpected order: %v, %v", runs[0].ID, runs[1].ID)
	}
	if runs[0].State != types.StateError || runs[0].FailureStage != "decode" || runs[0].Artifact != "" {
		t.Errorf("Unexpected failed run: %+v", runs[0])
	}
	got := runs[1]
	if got.State != types.StateResultReady || got.Artifact != "upscaled_photo.png" || got.Width != 800 || got.Duration != 1500*time.Millisecond {
		t.Errorf("Unexpected successful run: %+v", got)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("Expected start %v, got %v", start, got.StartedAt)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(1) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 run with limit, got %d", len(limited))
	}

	// Reset drops the table; a fresh store recreates it empty
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	s2, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}
	defer s2.Close(ctx)
	runs, err = s2.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns after reset failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected empty ledger after reset, got %d", len(runs))
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error("Expected nil for empty string")
	}
	if p := nullable("decode"); p == nil || *p != "decode" {
		t.Errorf("Expected pointer to value, got %v", p)
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
