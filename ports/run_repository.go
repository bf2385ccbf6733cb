package ports

import (
	"context"

	"gomotif/domain/core"
	"gomotif/domain/run"
)

// RunRepository defines the interface for run lifecycle records
type RunRepository interface {
	// SaveRun persists a new run record
	SaveRun(ctx context.Context, r *run.Run) error

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, runID core.RunID) (*run.Run, error)

	// ListRuns returns runs ordered newest first, optionally limited
	ListRuns(ctx context.Context, limit int) ([]*run.Run, error)

	// UpdateRunStatus transitions a run's lifecycle state
	UpdateRunStatus(ctx context.Context, runID core.RunID, status run.Status, errMsg string) error
}

// SweepRepository defines the interface for sweep lifecycle records
type SweepRepository interface {
	// SaveSweep persists a new sweep record
	SaveSweep(ctx context.Context, s *run.Sweep) error

	// GetSweep retrieves a sweep by ID
	GetSweep(ctx context.Context, sweepID core.SweepID) (*run.Sweep, error)

	// ListSweeps returns sweeps ordered newest first, optionally limited
	ListSweeps(ctx context.Context, limit int) ([]*run.Sweep, error)

	// UpdateSweepStatus transitions a sweep's lifecycle state
	UpdateSweepStatus(ctx context.Context, sweepID core.SweepID, status run.Status, errMsg string) error

	// DeleteSweep removes a sweep record and its artifacts
	DeleteSweep(ctx context.Context, sweepID core.SweepID) error
}
