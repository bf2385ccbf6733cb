package app

import (
	"context"
	"fmt"
	"time"

	"gomotif/domain/core"
	"gomotif/domain/run"
	"gomotif/domain/sensitivity"
	"gomotif/domain/signal"
	"gomotif/internal"
	"gomotif/ports"
)

// SweepService executes one validation run per detector threshold setting
// over the same signal, then aggregates the evaluated candidates into the
// sensitivity table.
//
// Cancellation is honored between settings: a partially computed setting
// contributes nothing to the aggregate and is recorded as discarded, while
// settings that finished stay committed with all their artifacts.
type SweepService struct {
	runService *RunService
	ledger     ports.LedgerWriterPort
	sweeps     ports.SweepRepository
	progress   ProgressSink
	logger     *internal.ComponentLogger
}

// NewSweepService wires the sweep loop on top of the run service.
func NewSweepService(runService *RunService, ledger ports.LedgerWriterPort,
	sweeps ports.SweepRepository, progress ProgressSink) *SweepService {
	if progress == nil {
		progress = NopProgressSink{}
	}
	return &SweepService{
		runService: runService,
		ledger:     ledger,
		sweeps:     sweeps,
		progress:   progress,
		logger:     internal.DefaultLogger.Component("SweepService"),
	}
}

// SweepRequest defines the inputs for one threshold sensitivity sweep. The
// config's own threshold percentile is ignored; each setting overrides it.
type SweepRequest struct {
	SweepID  core.SweepID // optional, generated when empty
	Signal   *signal.Signal
	Settings []sensitivity.Setting
	Config   run.Config
}

// SweepResult contains the aggregate outcome. Sensitivity is nil when the
// sweep was cancelled before any setting completed.
type SweepResult struct {
	SweepID     core.SweepID               `json:"sweep_id"`
	Manifest    *run.SweepManifestArtifact `json:"manifest"`
	Sensitivity *sensitivity.Table         `json:"sensitivity"`
	RuntimeMs   int64                      `json:"runtime_ms"`
}

// Execute runs the sweep. Per-setting run IDs derive from the sweep ID, so
// replaying a sweep under the same ID reproduces every RNG stream.
func (s *SweepService) Execute(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	startTime := time.Now()

	if req.Signal == nil {
		return nil, fmt.Errorf("%w: signal cannot be nil", core.ErrConfigInvalid)
	}
	if len(req.Settings) == 0 {
		return nil, fmt.Errorf("%w: sweep needs at least one setting", core.ErrConfigInvalid)
	}
	seen := make(map[sensitivity.Setting]bool, len(req.Settings))
	for _, setting := range req.Settings {
		if err := setting.Validate(); err != nil {
			return nil, err
		}
		if seen[setting] {
			return nil, fmt.Errorf("%w: duplicate setting %s", core.ErrConfigInvalid, setting)
		}
		seen[setting] = true
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	sweepID := req.SweepID
	if core.ID(sweepID).IsEmpty() {
		sweepID = core.SweepID(core.NewID())
	}
	settings := make([]int, len(req.Settings))
	for i, setting := range req.Settings {
		settings[i] = int(setting)
	}

	record := &run.Sweep{
		ID:        sweepID,
		SignalKey: req.Signal.Key,
		Status:    run.StatusPending,
		Settings:  settings,
		CreatedAt: core.Now(),
	}
	if err := s.sweeps.SaveSweep(ctx, record); err != nil {
		return nil, fmt.Errorf("save sweep record: %w", err)
	}
	if err := s.sweeps.UpdateSweepStatus(ctx, sweepID, run.StatusRunning, ""); err != nil {
		return nil, fmt.Errorf("mark sweep running: %w", err)
	}

	manifest := run.NewSweepManifestArtifact(sweepID, req.Signal.Key, req.Config.Seed, settings)
	results := make([]sensitivity.SettingResult, 0, len(req.Settings))
	var cancelled error

	for _, setting := range req.Settings {
		if err := ctx.Err(); err != nil {
			manifest.DiscardedSettings = append(manifest.DiscardedSettings, int(setting))
			cancelled = err
			continue
		}

		s.progress.RunPhase(core.RunID(sweepID), "setting", setting.String())
		cfg := req.Config
		cfg.ThresholdPercentile = int(setting)
		runID := core.RunID(fmt.Sprintf("%s-%s", sweepID, setting))

		result, err := s.runService.Execute(ctx, RunRequest{RunID: runID, Signal: req.Signal, Config: cfg})
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-setting: the setting's aggregate
				// contribution is dropped wholesale.
				manifest.DiscardedSettings = append(manifest.DiscardedSettings, int(setting))
				cancelled = ctx.Err()
				continue
			}
			s.failSweep(ctx, sweepID, err)
			return nil, fmt.Errorf("setting %s: %w", setting, err)
		}

		manifest.RunIDs[int(setting)] = result.RunID
		manifest.CompletedSettings = append(manifest.CompletedSettings, int(setting))
		for code, n := range result.Manifest.RejectionCounts {
			manifest.RejectionCounts[code] += n
		}
		for kind, n := range result.Manifest.ArtifactCounts {
			manifest.ArtifactCounts[kind] += n
		}
		results = append(results, sensitivity.SettingResult{
			Setting:    setting,
			Candidates: result.Candidates.Candidates,
		})
		s.logger.Info("Sweep %s: setting %s completed, %d/%d candidates selected",
			sweepID, setting, result.Manifest.CandidatesSelected, result.Manifest.CandidatesFound)
	}

	// Artifacts written after a cancellation still have to land.
	storeCtx := context.WithoutCancel(ctx)

	var table *sensitivity.Table
	if len(results) > 0 {
		built, err := sensitivity.BuildTable(sweepID, results)
		if err != nil {
			s.failSweep(storeCtx, sweepID, err)
			return nil, fmt.Errorf("aggregate sensitivity table: %w", err)
		}
		table = built
		art := core.Artifact{
			ID: core.NewID(), Kind: core.ArtifactSensitivityTable, Payload: table, CreatedAt: core.Now(),
		}
		if err := s.ledger.StoreArtifact(storeCtx, sweepID.String(), art); err != nil {
			s.failSweep(storeCtx, sweepID, err)
			return nil, fmt.Errorf("store sensitivity table: %w", err)
		}
		manifest.ArtifactCounts[string(core.ArtifactSensitivityTable)]++
	}

	manifest.RuntimeMs = time.Since(startTime).Milliseconds()
	manifestArtifact := manifest.ToCoreArtifact()
	manifest.ArtifactCounts[string(core.ArtifactSweepManifest)]++
	if err := s.ledger.StoreArtifact(storeCtx, sweepID.String(), manifestArtifact); err != nil {
		s.failSweep(storeCtx, sweepID, err)
		return nil, fmt.Errorf("store sweep manifest: %w", err)
	}

	if cancelled != nil {
		msg := fmt.Sprintf("cancelled with %d of %d settings completed",
			len(manifest.CompletedSettings), len(settings))
		if err := s.sweeps.UpdateSweepStatus(storeCtx, sweepID, run.StatusFailed, msg); err != nil {
			s.logger.Error("Sweep %s cancelled and the status update failed too: %v", sweepID, err)
		}
		s.logger.Warn("Sweep %s: %s", sweepID, msg)
		return nil, fmt.Errorf("sweep %s %s: %w", sweepID, msg, cancelled)
	}

	if err := s.sweeps.UpdateSweepStatus(ctx, sweepID, run.StatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("mark sweep completed: %w", err)
	}
	s.progress.RunPhase(core.RunID(sweepID), "completed", "")
	s.logger.Info("Sweep %s: %d settings completed in %dms",
		sweepID, len(manifest.CompletedSettings), manifest.RuntimeMs)

	return &SweepResult{
		SweepID:     sweepID,
		Manifest:    manifest,
		Sensitivity: table,
		RuntimeMs:   manifest.RuntimeMs,
	}, nil
}

func (s *SweepService) failSweep(ctx context.Context, sweepID core.SweepID, cause error) {
	if err := s.sweeps.UpdateSweepStatus(context.WithoutCancel(ctx), sweepID, run.StatusFailed, cause.Error()); err != nil {
		s.logger.Error("Sweep %s failed and the status update failed too: %v", sweepID, err)
	}
}
