package jitter

import (
	"context"
	"reflect"
	"testing"

	"gomotif/adapters/battery"
	"gomotif/adapters/detect"
	"gomotif/adapters/rng"
	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/internal/significance"
	"gomotif/internal/testkit"
	"gomotif/ports"
)

func newTestAnalyzer() *Analyzer {
	rngAdapter := rng.New()
	return NewAnalyzer(
		detect.NewZScoreDetector(detect.DefaultConfig()),
		battery.NewNullBattery(rngAdapter),
		rngAdapter,
	)
}

func plantedSignal(t *testing.T) *signal.Signal {
	t.Helper()
	sig, err := testkit.NewSignalGenerator(testkit.DefaultSignalConfig()).Generate()
	if err != nil {
		t.Fatalf("Failed to generate signal: %v", err)
	}
	return sig
}

func stabilityConfig() run.Config {
	cfg := run.DefaultConfig(42)
	cfg.B = 100
	cfg.Workers = 4
	cfg.Stability.K = 3
	cfg.Stability.JitterScale = 0.005
	return cfg
}

// runBaseline produces the evaluated candidates of the unjittered pass.
func runBaseline(t *testing.T, sig *signal.Signal, cfg run.Config) []motif.Candidate {
	t.Helper()

	rngAdapter := rng.New()
	detector := detect.NewZScoreDetector(detect.DefaultConfig())
	nullBattery := battery.NewNullBattery(rngAdapter)

	cands, err := detector.Detect(context.Background(), sig, cfg.ThresholdPercentile)
	if err != nil {
		t.Fatalf("Baseline detection failed: %v", err)
	}
	batRes, err := nullBattery.RunBattery(context.Background(), ports.BatteryRequest{
		RunID:        core.RunID("run-jitter-test"),
		Stage:        "null",
		Signal:       sig,
		Candidates:   cands,
		Mode:         cfg.Mode,
		B:            cfg.B,
		MinRegionLen: cfg.MinRegionLen,
		Workers:      cfg.Workers,
		Seed:         cfg.Seed,
	})
	if err != nil {
		t.Fatalf("Baseline battery failed: %v", err)
	}

	evaluator, err := significance.NewEvaluator(cfg.Alpha)
	if err != nil {
		t.Fatalf("Evaluator setup failed: %v", err)
	}
	byLabel := make(map[motif.Label]int, len(batRes.Sets))
	for i, set := range batRes.Sets {
		byLabel[set.Label] = i
	}
	evaluated := make([]motif.Candidate, 0, len(cands))
	for _, cand := range cands {
		i, ok := byLabel[cand.Label]
		if !ok {
			continue
		}
		out, _, err := evaluator.Evaluate(cand, batRes.Sets[i])
		if err != nil {
			t.Fatalf("Baseline evaluation failed: %v", err)
		}
		evaluated = append(evaluated, out)
	}
	return evaluated
}

func TestAnalyzer_ReportShape(t *testing.T) {
	sig := plantedSignal(t)
	cfg := stabilityConfig()
	baseline := runBaseline(t, sig, cfg)

	report, err := newTestAnalyzer().Analyze(context.Background(), Request{
		RunID:    core.RunID("run-jitter-test"),
		Signal:   sig,
		Baseline: baseline,
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	k := cfg.Stability.K
	if report.Matrix.K != k {
		t.Errorf("Matrix K = %d, want %d", report.Matrix.K, k)
	}
	if len(report.Matrix.Pairs) != k*(k-1)/2 {
		t.Errorf("Expected %d pairs, got %d", k*(k-1)/2, len(report.Matrix.Pairs))
	}
	for _, pair := range report.Matrix.Pairs {
		if pair.Jaccard < 0 || pair.Jaccard > 1 {
			t.Errorf("Pair (%d,%d) overlap %v outside [0, 1]", pair.SeedI, pair.SeedJ, pair.Jaccard)
		}
	}

	seen := make(map[int]bool)
	for _, group := range report.Groups {
		if group.NMemberSets != len(group.MemberSeeds) {
			t.Errorf("Group %s member count mismatch", group.ConsensusID)
		}
		for _, seed := range group.MemberSeeds {
			if seen[seed] {
				t.Errorf("Seed %d appears in more than one group", seed)
			}
			seen[seed] = true
		}
	}
	if len(seen) != k {
		t.Errorf("Groups cover %d seeds, want %d", len(seen), k)
	}

	if report.Fragmentation <= 0 || report.Fragmentation > 1 {
		t.Errorf("Fragmentation %v outside (0, 1]", report.Fragmentation)
	}
	if report.RankConcordance.K != k {
		t.Errorf("Concordance K = %d, want %d", report.RankConcordance.K, k)
	}
	if report.RankConcordance.Mean < 0 || report.RankConcordance.Mean > 1 {
		t.Errorf("Concordance mean %v outside [0, 1]", report.RankConcordance.Mean)
	}

	for _, freq := range report.SelectionFrequency {
		if freq.Frequency < 0 || freq.Frequency > 1 {
			t.Errorf("Label %s frequency %v outside [0, 1]", freq.Label, freq.Frequency)
		}
		if freq.Unstable != (freq.Frequency < cfg.Stability.UnstableBelow) {
			t.Errorf("Label %s unstable flag inconsistent with frequency %v", freq.Label, freq.Frequency)
		}
	}
}

func TestAnalyzer_TinyJitterIsStable(t *testing.T) {
	sig := plantedSignal(t)
	cfg := stabilityConfig()
	baseline := runBaseline(t, sig, cfg)

	report, err := newTestAnalyzer().Analyze(context.Background(), Request{
		RunID:    core.RunID("run-jitter-test"),
		Signal:   sig,
		Baseline: baseline,
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if mean := report.Matrix.MeanOverlap(); mean < 0.5 {
		t.Errorf("Half-percent jitter should keep selections mostly aligned, mean overlap = %v", mean)
	}
	hasConsensus := false
	for _, group := range report.Groups {
		if group.Consensus {
			hasConsensus = true
		}
	}
	if !hasConsensus {
		t.Errorf("Expected at least one consensus-stable group: %+v", report.Groups)
	}
}

func TestAnalyzer_Deterministic(t *testing.T) {
	sig := plantedSignal(t)
	cfg := stabilityConfig()
	baseline := runBaseline(t, sig, cfg)
	req := Request{RunID: core.RunID("run-jitter-test"), Signal: sig, Baseline: baseline, Config: cfg}

	first, err := newTestAnalyzer().Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("First analysis failed: %v", err)
	}
	second, err := newTestAnalyzer().Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Second analysis failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Stability report differs across identical reruns")
	}
}

func TestAnalyzer_BaselineLabelAlwaysReported(t *testing.T) {
	sig := plantedSignal(t)
	cfg := stabilityConfig()
	baseline := runBaseline(t, sig, cfg)

	ghost := motif.MustNewCandidate(motif.Label("m99999_w999"), 16, 999, 50.0, signal.Region{Start: 900, End: 1100})
	ghost, err := ghost.WithEvaluation(0.001, true)
	if err != nil {
		t.Fatalf("WithEvaluation failed: %v", err)
	}
	baseline = append(baseline, ghost)

	report, err := newTestAnalyzer().Analyze(context.Background(), Request{
		RunID:    core.RunID("run-jitter-test"),
		Signal:   sig,
		Baseline: baseline,
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	found := false
	for _, freq := range report.SelectionFrequency {
		if freq.Label == ghost.Label {
			found = true
			if freq.Frequency != 0 {
				t.Errorf("Ghost label frequency = %v, want 0", freq.Frequency)
			}
			if !freq.Unstable {
				t.Errorf("Never-reselected baseline label must be flagged unstable")
			}
		}
	}
	if !found {
		t.Errorf("Baseline-selected label missing from selection frequencies")
	}
}

func TestAnalyzer_RejectsBadConfig(t *testing.T) {
	analyzer := newTestAnalyzer()
	sig := plantedSignal(t)

	tests := []struct {
		name   string
		mutate func(*run.Config)
	}{
		{"single seed", func(c *run.Config) { c.Stability.K = 1 }},
		{"zero jitter", func(c *run.Config) { c.Stability.JitterScale = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := stabilityConfig()
			tt.mutate(&cfg)
			req := Request{RunID: core.RunID("run-jitter-test"), Signal: sig, Config: cfg}
			if _, err := analyzer.Analyze(context.Background(), req); !core.IsConfigError(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}

	t.Run("nil signal", func(t *testing.T) {
		req := Request{RunID: core.RunID("run-jitter-test"), Config: stabilityConfig()}
		if _, err := analyzer.Analyze(context.Background(), req); err == nil {
			t.Errorf("Expected error for nil signal")
		}
	})
}
