package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/power"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/domain/stability"
	"gomotif/internal"
	"gomotif/internal/injection"
	"gomotif/internal/jitter"
	"gomotif/internal/significance"
	"gomotif/ports"
)

// ProgressSink receives phase transitions while a pipeline executes. The
// API layer plugs its event hub in here; batch callers use NopProgressSink.
// Power and stability phases report concurrently, so implementations must
// be safe for concurrent use.
type ProgressSink interface {
	RunPhase(runID core.RunID, phase, detail string)
}

// NopProgressSink discards all progress events.
type NopProgressSink struct{}

// RunPhase implements ProgressSink.
func (NopProgressSink) RunPhase(core.RunID, string, string) {}

// RunService executes the full validation pipeline for one signal: detect
// candidates, draw their null battery, evaluate significance, then branch
// into injection power and jitter stability before sealing the manifest.
//
// Every output is persisted through the ledger as the run progresses, so a
// failed run still leaves its partial artifacts (and its skip records) on
// record. The manifest is stored last, after all counts are known.
type RunService struct {
	detector  ports.DetectorPort
	battery   ports.NullBatteryPort
	rngPort   ports.RNGPort
	estimator *injection.Estimator
	analyzer  *jitter.Analyzer
	ledger    ports.LedgerWriterPort
	runs      ports.RunRepository
	progress  ProgressSink
	logger    *internal.ComponentLogger
}

// NewRunService wires the validation pipeline from its ports.
func NewRunService(detector ports.DetectorPort, battery ports.NullBatteryPort, rngPort ports.RNGPort,
	ledger ports.LedgerWriterPort, runs ports.RunRepository, progress ProgressSink) *RunService {
	if progress == nil {
		progress = NopProgressSink{}
	}
	return &RunService{
		detector:  detector,
		battery:   battery,
		rngPort:   rngPort,
		estimator: injection.NewEstimator(detector, battery, rngPort),
		analyzer:  jitter.NewAnalyzer(detector, battery, rngPort),
		ledger:    ledger,
		runs:      runs,
		progress:  progress,
		logger:    internal.DefaultLogger.Component("RunService"),
	}
}

// RunRequest defines the inputs for one validation run.
type RunRequest struct {
	RunID  core.RunID // optional, generated when empty
	Signal *signal.Signal
	Config run.Config
}

// RunResult contains what the pipeline produced. Everything here is also
// stored in the ledger; the result exists so callers don't read back what
// they just wrote.
type RunResult struct {
	RunID      core.RunID            `json:"run_id"`
	Manifest   *run.ManifestArtifact `json:"manifest"`
	Candidates motif.Table           `json:"candidates"`
	Power      *power.Curve          `json:"power"`
	Stability  *stability.Report     `json:"stability"`
	RuntimeMs  int64                 `json:"runtime_ms"`
}

// Execute runs the complete pipeline and persists every artifact it
// produces. A configuration error aborts before any sampling begins. A
// failed determinism self-check does not abort: the run completes but its
// manifest is marked untrusted.
func (s *RunService) Execute(ctx context.Context, req RunRequest) (*RunResult, error) {
	startTime := time.Now()

	if req.Signal == nil {
		return nil, fmt.Errorf("%w: signal cannot be nil", core.ErrConfigInvalid)
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if core.ID(runID).IsEmpty() {
		runID = core.RunID(core.NewID())
	}

	record := &run.Run{
		ID:        runID,
		SignalKey: req.Signal.Key,
		Status:    run.StatusPending,
		Config:    req.Config,
		CreatedAt: core.Now(),
	}
	if err := s.runs.SaveRun(ctx, record); err != nil {
		return nil, fmt.Errorf("save run record: %w", err)
	}
	if err := s.runs.UpdateRunStatus(ctx, runID, run.StatusRunning, ""); err != nil {
		return nil, fmt.Errorf("mark run running: %w", err)
	}

	result, err := s.executePipeline(ctx, runID, req.Signal, req.Config, startTime)
	if err != nil {
		// The failed status must land even when the failure is the
		// context itself going away.
		failCtx := context.WithoutCancel(ctx)
		if statusErr := s.runs.UpdateRunStatus(failCtx, runID, run.StatusFailed, err.Error()); statusErr != nil {
			s.logger.Error("Run %s failed and the status update failed too: %v", runID, statusErr)
		}
		return nil, err
	}

	if err := s.runs.UpdateRunStatus(ctx, runID, run.StatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("mark run completed: %w", err)
	}
	return result, nil
}

func (s *RunService) executePipeline(ctx context.Context, runID core.RunID, sig *signal.Signal,
	cfg run.Config, startTime time.Time) (*RunResult, error) {

	manifest := run.NewManifestArtifact(runID, sig.Key, sig.Len(), core.ComputeSampleHash(sig.Values), cfg)

	s.progress.RunPhase(runID, "seed_check", "")
	if err := s.probeSeed(ctx, runID, cfg.Seed); err != nil {
		manifest.MarkUntrusted(err.Error())
		s.logger.Warn("Run %s: seed probe failed, run marked untrusted: %v", runID, err)
	}

	s.progress.RunPhase(runID, "detect", "")
	candidates, err := s.detector.Detect(ctx, sig, cfg.ThresholdPercentile)
	if err != nil {
		return nil, fmt.Errorf("detect candidates: %w", err)
	}
	manifest.CandidatesFound = len(candidates)
	s.logger.Info("Run %s: %d candidates above p%d window threshold", runID, len(candidates), cfg.ThresholdPercentile)

	s.progress.RunPhase(runID, "null_battery", fmt.Sprintf("%d candidates, B=%d", len(candidates), cfg.B))
	batteryResult, err := s.battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        runID,
		Stage:        "null",
		Signal:       sig,
		Candidates:   candidates,
		Mode:         cfg.Mode,
		B:            cfg.B,
		MinRegionLen: cfg.MinRegionLen,
		Workers:      cfg.Workers,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("null battery: %w", err)
	}

	for _, skip := range batteryResult.Skipped {
		manifest.RecordSkip(skip.ReasonCode)
		if err := s.store(ctx, runID, manifest, skip.ToCoreArtifact()); err != nil {
			return nil, err
		}
	}

	// Capture one fingerprint before evaluation consumes the sets; the
	// determinism replay below compares against it.
	var probeLabel motif.Label
	var probeFingerprint core.SampleHash
	if len(batteryResult.Sets) > 0 {
		probeLabel = batteryResult.Sets[0].Label
		probeFingerprint = batteryResult.Sets[0].Fingerprint
	}

	evaluable, sets := alignSets(candidates, batteryResult.Sets)

	evaluator, err := significance.NewEvaluator(cfg.Alpha)
	if err != nil {
		return nil, err
	}
	s.progress.RunPhase(runID, "evaluate", fmt.Sprintf("%d evaluable", len(evaluable)))
	evaluated, summaries, err := evaluator.EvaluateAll(evaluable, sets)
	if err != nil {
		return nil, fmt.Errorf("evaluate candidates: %w", err)
	}
	manifest.CandidatesEvaluated = len(evaluated)
	for _, cand := range evaluated {
		if cand.Selected {
			manifest.CandidatesSelected++
		}
	}

	table := motif.Table{RunID: runID, Candidates: evaluated}
	if err := s.store(ctx, runID, manifest, core.Artifact{
		ID: core.NewID(), Kind: core.ArtifactCandidateTable, Payload: table, CreatedAt: core.Now(),
	}); err != nil {
		return nil, err
	}

	summaryTable := nullmodel.SummaryTable{RunID: runID, Rows: make([]nullmodel.Summary, len(summaries))}
	for i, sum := range summaries {
		summaryTable.Rows[i] = *sum
	}
	if err := s.store(ctx, runID, manifest, core.Artifact{
		ID: core.NewID(), Kind: core.ArtifactNullSummary, Payload: summaryTable, CreatedAt: core.Now(),
	}); err != nil {
		return nil, err
	}

	// Power and stability read disjoint RNG stages off the same inputs, so
	// they can run side by side.
	var curve *power.Curve
	var report *stability.Report
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.progress.RunPhase(runID, "power", fmt.Sprintf("%d cells", cfg.Power.Cells()))
		c, err := s.estimator.Estimate(groupCtx, injection.Request{RunID: runID, Signal: sig, Config: cfg})
		if err != nil {
			return fmt.Errorf("injection power: %w", err)
		}
		curve = c
		return nil
	})
	group.Go(func() error {
		s.progress.RunPhase(runID, "stability", fmt.Sprintf("%d jitter seeds", cfg.Stability.K))
		r, err := s.analyzer.Analyze(groupCtx, jitter.Request{RunID: runID, Signal: sig, Baseline: evaluated, Config: cfg})
		if err != nil {
			return fmt.Errorf("jitter stability: %w", err)
		}
		report = r
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := s.store(ctx, runID, manifest, core.Artifact{
		ID: core.NewID(), Kind: core.ArtifactPowerCurve, Payload: curve, CreatedAt: core.Now(),
	}); err != nil {
		return nil, err
	}
	if err := s.store(ctx, runID, manifest, core.Artifact{
		ID: core.NewID(), Kind: core.ArtifactStabilityMatrix, Payload: report.Matrix, CreatedAt: core.Now(),
	}); err != nil {
		return nil, err
	}
	if err := s.store(ctx, runID, manifest, core.Artifact{
		ID: core.NewID(), Kind: core.ArtifactConsensusSummary, Payload: report, CreatedAt: core.Now(),
	}); err != nil {
		return nil, err
	}

	s.progress.RunPhase(runID, "determinism_check", "")
	if probeLabel != "" {
		if err := s.replayBattery(ctx, runID, sig, cfg, candidates, probeLabel, probeFingerprint); err != nil {
			manifest.MarkUntrusted(err.Error())
			s.logger.Warn("Run %s: determinism replay failed: %v", runID, err)
		}
	}

	manifest.RuntimeMs = time.Since(startTime).Milliseconds()
	summary := &run.SummaryArtifact{
		RunID:     runID,
		Markdown:  buildRunMarkdown(manifest, table, summaryTable, curve, report),
		CreatedAt: core.Now(),
	}
	if err := s.store(ctx, runID, manifest, summary.ToCoreArtifact()); err != nil {
		return nil, err
	}

	manifestArtifact := manifest.ToCoreArtifact()
	manifest.ArtifactCounts[string(core.ArtifactRunManifest)]++
	if err := s.ledger.StoreArtifact(ctx, runID.String(), manifestArtifact); err != nil {
		return nil, fmt.Errorf("store run manifest: %w", err)
	}

	s.progress.RunPhase(runID, "completed", "")
	s.logger.Info("Run %s: %d/%d candidates selected, trusted=%v, %dms",
		runID, manifest.CandidatesSelected, manifest.CandidatesFound, manifest.Trusted, manifest.RuntimeMs)

	return &RunResult{
		RunID:      runID,
		Manifest:   manifest,
		Candidates: table,
		Power:      curve,
		Stability:  report,
		RuntimeMs:  manifest.RuntimeMs,
	}, nil
}

// store persists one artifact and tallies it on the manifest.
func (s *RunService) store(ctx context.Context, runID core.RunID, manifest *run.ManifestArtifact, art core.Artifact) error {
	if err := s.ledger.StoreArtifact(ctx, runID.String(), art); err != nil {
		return fmt.Errorf("store %s artifact: %w", art.Kind, err)
	}
	manifest.ArtifactCounts[string(art.Kind)]++
	return nil
}

// probeSeed exercises the RNG adapter round trip before any sampling: draw
// a few values from a named stream, then ask the adapter to reproduce them.
func (s *RunService) probeSeed(ctx context.Context, runID core.RunID, seed int64) error {
	probeName := "seed-probe:" + runID.String()
	stream, err := s.rngPort.SeededStream(ctx, probeName, seed)
	if err != nil {
		return err
	}
	expected := make([]float64, 8)
	for i := range expected {
		expected[i] = stream.Float64()
	}
	return s.rngPort.ValidateSeed(ctx, probeName, seed, expected)
}

// replayBattery reruns the null battery for a single candidate under the
// same stage and compares sample fingerprints. Per-candidate streams are
// independent, so one candidate is enough to catch a drifting sampler.
func (s *RunService) replayBattery(ctx context.Context, runID core.RunID, sig *signal.Signal, cfg run.Config,
	candidates []motif.Candidate, label motif.Label, want core.SampleHash) error {

	var probe []motif.Candidate
	for _, cand := range candidates {
		if cand.Label == label {
			probe = append(probe, cand)
			break
		}
	}
	if len(probe) == 0 {
		return fmt.Errorf("%w: replay candidate %s not found", core.ErrNonDeterministic, label)
	}

	replay, err := s.battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        runID,
		Stage:        "null",
		Signal:       sig,
		Candidates:   probe,
		Mode:         cfg.Mode,
		B:            cfg.B,
		MinRegionLen: cfg.MinRegionLen,
		Workers:      1,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return fmt.Errorf("replay battery for %s: %w", label, err)
	}
	if len(replay.Sets) != 1 {
		return fmt.Errorf("%w: replay for %s produced %d sample sets", core.ErrNonDeterministic, label, len(replay.Sets))
	}
	if got := replay.Sets[0].Fingerprint; got != want {
		return core.NewDeterminismError(label.String(), core.Hash(want), core.Hash(got))
	}
	return nil
}

// alignSets pairs candidates with their sample sets in detector order.
// Candidates the battery skipped have no set and drop out here; their skip
// artifacts were already stored.
func alignSets(candidates []motif.Candidate, sets []*nullmodel.SampleSet) ([]motif.Candidate, []*nullmodel.SampleSet) {
	byLabel := make(map[motif.Label]*nullmodel.SampleSet, len(sets))
	for _, set := range sets {
		byLabel[set.Label] = set
	}

	evaluable := make([]motif.Candidate, 0, len(sets))
	aligned := make([]*nullmodel.SampleSet, 0, len(sets))
	for _, cand := range candidates {
		set, ok := byLabel[cand.Label]
		if !ok {
			continue
		}
		evaluable = append(evaluable, cand)
		aligned = append(aligned, set)
	}
	return evaluable, aligned
}

// buildRunMarkdown renders the human-readable run summary stored as the
// run_summary artifact and displayed by the console.
func buildRunMarkdown(manifest *run.ManifestArtifact, table motif.Table,
	nulls nullmodel.SummaryTable, curve *power.Curve, report *stability.Report) string {

	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", manifest.RunID)
	fmt.Fprintf(&b, "Signal `%s` (%d samples), seed %d, mode %s, B=%d, alpha=%g.\n\n",
		manifest.SignalKey, manifest.SignalLen, manifest.Seed, manifest.Config.Mode,
		manifest.Config.B, manifest.Config.Alpha)
	if !manifest.Trusted {
		fmt.Fprintf(&b, "**UNTRUSTED RUN**: %s\n\n", manifest.TrustedReason)
	}

	fmt.Fprintf(&b, "## Candidates\n\n")
	fmt.Fprintf(&b, "Found %d, evaluated %d, skipped %d, selected %d at alpha %g.\n\n",
		manifest.CandidatesFound, manifest.CandidatesEvaluated, manifest.CandidatesSkipped,
		manifest.CandidatesSelected, manifest.Config.Alpha)
	if selected := table.SelectedLabels(); len(selected) > 0 {
		parts := make([]string, len(selected))
		for i, label := range selected {
			parts[i] = "`" + label.String() + "`"
		}
		fmt.Fprintf(&b, "Selected: %s.\n\n", strings.Join(parts, ", "))
	}

	if len(nulls.Rows) > 0 {
		b.WriteString("| candidate | t_obs | null median | null 95% | p-value | selected |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, row := range nulls.Rows {
			fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f | %.4f | %v |\n",
				row.CandidateID, row.TObs, row.NullMedian, row.Null95Pct, row.PValue, row.Selected)
		}
		b.WriteString("\n")
	}

	if len(manifest.RejectionCounts) > 0 {
		fmt.Fprintf(&b, "## Skips\n\n")
		for _, code := range []run.WarningCode{run.WarningShortRegion, run.WarningZeroVariance,
			run.WarningInsufficientData, run.WarningDeterminism, run.WarningLowStability} {
			if n := manifest.RejectionCounts[code]; n > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", code, n)
			}
		}
		b.WriteString("\n")
	}

	if curve != nil && len(curve.Cells) > 0 {
		fmt.Fprintf(&b, "## Injection power\n\n")
		b.WriteString("| size | sigma | detection rate | trials |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, cell := range curve.Cells {
			fmt.Fprintf(&b, "| %d | %g | %.2f | %d |\n", cell.Size, cell.Sigma, cell.DetectionRate, cell.Trials)
		}
		b.WriteString("\n")
	}

	if report != nil {
		fmt.Fprintf(&b, "## Stability\n\n")
		fmt.Fprintf(&b, "Jitter scale %g over %d seeds: mean pairwise Jaccard %.3f, fragmentation %.2f, rank concordance %.3f.\n\n",
			report.JitterScale, report.Matrix.K, report.Matrix.MeanOverlap(),
			report.Fragmentation, report.RankConcordance.Mean)
		for _, freq := range report.SelectionFrequency {
			marker := ""
			if freq.Unstable {
				marker = " (unstable)"
			}
			fmt.Fprintf(&b, "- %s: selected in %.0f%% of reruns%s\n", freq.Label, freq.Frequency*100, marker)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Runtime %dms, config hash `%s`, code %s.\n",
		manifest.RuntimeMs, manifest.ConfigHash, manifest.CodeVersion)

	return b.String()
}
