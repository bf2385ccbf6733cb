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

// SweepRepository persists sweep lifecycle records in PostgreSQL.
type SweepRepository struct {
	db *sqlx.DB
}

// NewSweepRepository creates a PostgreSQL sweep repository
func NewSweepRepository(db *sqlx.DB) *SweepRepository {
	return &SweepRepository{db: db}
}

// SaveSweep persists a sweep record, overwriting any existing record with
// the same ID.
func (r *SweepRepository) SaveSweep(ctx context.Context, rec *run.Sweep) error {
	settingsJSON, err := json.Marshal(rec.Settings)
	if err != nil {
		return fmt.Errorf("marshal sweep settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sweeps (id, signal_key, status, settings, error_message, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			signal_key = EXCLUDED.signal_key,
			status = EXCLUDED.status,
			settings = EXCLUDED.settings,
			error_message = EXCLUDED.error_message,
			created_at = EXCLUDED.created_at,
			completed_at = EXCLUDED.completed_at`,
		rec.ID.String(), rec.SignalKey.String(), string(rec.Status), settingsJSON,
		rec.Error, rec.CreatedAt.Time(), nullableTime(rec.CompletedAt))
	if err != nil {
		return fmt.Errorf("save sweep %s: %w", rec.ID, err)
	}
	return nil
}

// GetSweep retrieves a sweep by ID.
func (r *SweepRepository) GetSweep(ctx context.Context, sweepID core.SweepID) (*run.Sweep, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, signal_key, status, settings, error_message, created_at, completed_at
		FROM sweeps WHERE id = $1`, sweepID.String())

	rec, err := scanSweep(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrSweepNotFound, sweepID)
		}
		return nil, err
	}
	return rec, nil
}

// ListSweeps returns sweeps ordered newest first, optionally limited.
func (r *SweepRepository) ListSweeps(ctx context.Context, limit int) ([]*run.Sweep, error) {
	query := `
		SELECT id, signal_key, status, settings, error_message, created_at, completed_at
		FROM sweeps ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var records []*run.Sweep
	for rows.Next() {
		rec, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateSweepStatus transitions a sweep's lifecycle state. Terminal states
// also stamp completed_at.
func (r *SweepRepository) UpdateSweepStatus(ctx context.Context, sweepID core.SweepID, status run.Status, errMsg string) error {
	query := `UPDATE sweeps SET status = $2, error_message = $3 WHERE id = $1`
	if status == run.StatusCompleted || status == run.StatusFailed {
		query = `UPDATE sweeps SET status = $2, error_message = $3, completed_at = NOW() WHERE id = $1`
	}

	result, err := r.db.ExecContext(ctx, query, sweepID.String(), string(status), errMsg)
	if err != nil {
		return fmt.Errorf("update sweep %s status: %w", sweepID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrSweepNotFound, sweepID)
	}
	return nil
}

// DeleteSweep removes a sweep record, the artifacts stored under it, the
// per-setting runs derived from it, and their artifacts, atomically.
// Derived run IDs share the sweep ID as prefix ("<sweep>-p<setting>").
func (r *SweepRepository) DeleteSweep(ctx context.Context, sweepID core.SweepID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete sweep: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM sweeps WHERE id = $1`, sweepID.String())
	if err != nil {
		return fmt.Errorf("delete sweep %s: %w", sweepID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrSweepNotFound, sweepID)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM artifacts WHERE run_id = $1 OR run_id LIKE $1 || '-%'`, sweepID.String())
	if err != nil {
		return fmt.Errorf("delete sweep %s artifacts: %w", sweepID, err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE id LIKE $1 || '-%'`, sweepID.String())
	if err != nil {
		return fmt.Errorf("delete sweep %s runs: %w", sweepID, err)
	}

	return tx.Commit()
}

func scanSweep(row rowScanner) (*run.Sweep, error) {
	var id, signalKey, status string
	var settingsJSON []byte
	var errMsg sql.NullString
	var createdAt time.Time
	var completedAt sql.NullTime

	if err := row.Scan(&id, &signalKey, &status, &settingsJSON, &errMsg, &createdAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan sweep: %w", err)
	}

	var settings []int
	if err := json.Unmarshal(settingsJSON, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal sweep settings: %w", err)
	}

	rec := &run.Sweep{
		ID:        core.SweepID(id),
		SignalKey: core.SignalKey(signalKey),
		Status:    run.Status(status),
		Settings:  settings,
		Error:     errMsg.String,
		CreatedAt: core.NewTimestamp(createdAt),
	}
	if completedAt.Valid {
		rec.CompletedAt = core.NewTimestamp(completedAt.Time)
	}
	return rec, nil
}

var _ ports.SweepRepository = (*SweepRepository)(nil)
