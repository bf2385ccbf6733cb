package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gomotif/domain/core"
	"gomotif/domain/run"
	"gomotif/ports"
)

// RunRepository persists run lifecycle records in PostgreSQL.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun persists a run record, overwriting any existing record with the
// same ID so a replayed run starts from a clean lifecycle row.
func (r *RunRepository) SaveRun(ctx context.Context, rec *run.Run) error {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, signal_key, status, config, error_message, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			signal_key = EXCLUDED.signal_key,
			status = EXCLUDED.status,
			config = EXCLUDED.config,
			error_message = EXCLUDED.error_message,
			created_at = EXCLUDED.created_at,
			completed_at = EXCLUDED.completed_at`,
		rec.ID.String(), rec.SignalKey.String(), string(rec.Status), configJSON,
		rec.Error, rec.CreatedAt.Time(), nullableTime(rec.CompletedAt))
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, runID core.RunID) (*run.Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, signal_key, status, config, error_message, created_at, completed_at
		FROM runs WHERE id = $1`, runID.String())

	rec, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
		}
		return nil, err
	}
	return rec, nil
}

// ListRuns returns runs ordered newest first, optionally limited.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*run.Run, error) {
	query := `
		SELECT id, signal_key, status, config, error_message, created_at, completed_at
		FROM runs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []*run.Run
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateRunStatus transitions a run's lifecycle state. Terminal states also
// stamp completed_at.
func (r *RunRepository) UpdateRunStatus(ctx context.Context, runID core.RunID, status run.Status, errMsg string) error {
	query := `UPDATE runs SET status = $2, error_message = $3 WHERE id = $1`
	if status == run.StatusCompleted || status == run.StatusFailed {
		query = `UPDATE runs SET status = $2, error_message = $3, completed_at = NOW() WHERE id = $1`
	}

	result, err := r.db.ExecContext(ctx, query, runID.String(), string(status), errMsg)
	if err != nil {
		return fmt.Errorf("update run %s status: %w", runID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	return nil
}

func scanRun(row rowScanner) (*run.Run, error) {
	var id, signalKey, status string
	var configJSON []byte
	var errMsg sql.NullString
	var createdAt time.Time
	var completedAt sql.NullTime

	if err := row.Scan(&id, &signalKey, &status, &configJSON, &errMsg, &createdAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	var cfg run.Config
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal run config: %w", err)
	}

	rec := &run.Run{
		ID:        core.RunID(id),
		SignalKey: core.SignalKey(signalKey),
		Status:    run.Status(status),
		Config:    cfg,
		Error:     errMsg.String,
		CreatedAt: core.NewTimestamp(createdAt),
	}
	if completedAt.Valid {
		rec.CompletedAt = core.NewTimestamp(completedAt.Time)
	}
	return rec, nil
}

// nullableTime maps a zero timestamp to SQL NULL.
func nullableTime(t core.Timestamp) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Time()
}

var _ ports.RunRepository = (*RunRepository)(nil)
