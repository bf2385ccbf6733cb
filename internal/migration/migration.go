package migration

import (
	"context"
	"fmt"

	"gomotif/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create runs table")
	}

	if err := r.createSweepsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create sweeps table")
	}

	if err := r.createArtifactsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create artifacts table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			signal_key TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB NOT NULL,
			error_message TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			completed_at TIMESTAMP WITH TIME ZONE
		)
	`)
	return err
}

func (r *MigrationRunner) createSweepsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			signal_key TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			settings JSONB NOT NULL,
			error_message TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			completed_at TIMESTAMP WITH TIME ZONE
		)
	`)
	return err
}

// createArtifactsTable builds the append-only ledger. run_id carries either a
// run ID or a sweep ID (sweep-level artifacts store under the sweep), so it
// deliberately has no foreign key.
func (r *MigrationRunner) createArtifactsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		// Artifact ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_artifacts_run_id ON artifacts(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_run_kind ON artifacts(run_id, kind)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_sweep_manifest ON artifacts((payload->>'sweep_id')) WHERE kind = 'sweep_manifest'",

		// Run lifecycle indexes
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)",

		// Sweep lifecycle indexes
		"CREATE INDEX IF NOT EXISTS idx_sweeps_status ON sweeps(status)",
		"CREATE INDEX IF NOT EXISTS idx_sweeps_created_at ON sweeps(created_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
