package injection

import (
	"context"
	"testing"

	"gomotif/adapters/battery"
	"gomotif/adapters/detect"
	"gomotif/adapters/rng"
	"gomotif/domain/core"
	"gomotif/domain/power"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/internal/testkit"
)

func newTestEstimator() *Estimator {
	rngAdapter := rng.New()
	return NewEstimator(
		detect.NewZScoreDetector(detect.DefaultConfig()),
		battery.NewNullBattery(rngAdapter),
		rngAdapter,
	)
}

func backgroundSignal(t *testing.T) *signal.Signal {
	t.Helper()
	cfg := testkit.DefaultSignalConfig()
	cfg.Motifs = nil
	sig, err := testkit.NewSignalGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("Failed to generate background: %v", err)
	}
	return sig
}

func testRequest(sig *signal.Signal, grid power.Grid) Request {
	cfg := run.DefaultConfig(42)
	cfg.B = 100
	cfg.Workers = 4
	cfg.Power = grid
	return Request{RunID: core.RunID("run-power-test"), Signal: sig, Config: cfg}
}

func TestEstimator_StrongInjectionIsRecovered(t *testing.T) {
	estimator := newTestEstimator()
	sig := backgroundSignal(t)
	grid := power.Grid{Sizes: []int{16}, Sigmas: []float64{0.05, 5.0}, Trials: 6}

	curve, err := estimator.Estimate(context.Background(), testRequest(sig, grid))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if len(curve.Cells) != grid.Cells() {
		t.Fatalf("Expected %d cells, got %d", grid.Cells(), len(curve.Cells))
	}
	for _, cell := range curve.Cells {
		if cell.Trials != grid.Trials {
			t.Errorf("Cell (%d, %g) reports %d trials, want %d", cell.Size, cell.Sigma, cell.Trials, grid.Trials)
		}
		if cell.Detected < 0 || cell.Detected > cell.Trials {
			t.Errorf("Cell (%d, %g) detected count %d outside [0, %d]", cell.Size, cell.Sigma, cell.Detected, cell.Trials)
		}
		wantRate := float64(cell.Detected) / float64(cell.Trials)
		if cell.DetectionRate != wantRate {
			t.Errorf("Cell (%d, %g) rate %v inconsistent with %d/%d", cell.Size, cell.Sigma, cell.DetectionRate, cell.Detected, cell.Trials)
		}
	}

	weak, ok := curve.CellFor(16, 0.05)
	if !ok {
		t.Fatalf("Missing weak cell")
	}
	strong, ok := curve.CellFor(16, 5.0)
	if !ok {
		t.Fatalf("Missing strong cell")
	}
	if strong.DetectionRate < 0.5 {
		t.Errorf("Strong injections should usually be recovered, rate = %v", strong.DetectionRate)
	}
	if strong.DetectionRate < weak.DetectionRate {
		t.Errorf("Strong rate %v below weak rate %v", strong.DetectionRate, weak.DetectionRate)
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	sig := backgroundSignal(t)
	grid := power.Grid{Sizes: []int{16}, Sigmas: []float64{2.0}, Trials: 4}
	req := testRequest(sig, grid)

	first, err := newTestEstimator().Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("First estimate failed: %v", err)
	}
	second, err := newTestEstimator().Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("Second estimate failed: %v", err)
	}

	for i := range first.Cells {
		if first.Cells[i] != second.Cells[i] {
			t.Errorf("Cell %d differs across reruns: %+v vs %+v", i, first.Cells[i], second.Cells[i])
		}
	}
}

func TestEstimator_ZeroDetectionsIsValid(t *testing.T) {
	estimator := newTestEstimator()
	sig := backgroundSignal(t)
	// amplitude far below the noise floor
	grid := power.Grid{Sizes: []int{16}, Sigmas: []float64{0.01}, Trials: 3}

	curve, err := estimator.Estimate(context.Background(), testRequest(sig, grid))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	cell := curve.Cells[0]
	if cell.Trials != 3 {
		t.Errorf("Trials = %d, want 3", cell.Trials)
	}
	if cell.DetectionRate < 0 || cell.DetectionRate > 1 {
		t.Errorf("Rate %v outside [0, 1]", cell.DetectionRate)
	}
}

func TestEstimator_RejectsBadInputs(t *testing.T) {
	estimator := newTestEstimator()
	sig := backgroundSignal(t)

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty grid", func(r *Request) { r.Config.Power = power.Grid{} }},
		{"zero trials", func(r *Request) { r.Config.Power.Trials = 0 }},
		{"size exceeds signal", func(r *Request) { r.Config.Power.Sizes = []int{sig.Len()} }},
		{"bad tolerance", func(r *Request) { r.Config.Tolerance.SizeFactor = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(sig, power.Grid{Sizes: []int{16}, Sigmas: []float64{1.0}, Trials: 2})
			tt.mutate(&req)
			if _, err := estimator.Estimate(context.Background(), req); !core.IsConfigError(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

func TestEstimator_RejectsFlatSignal(t *testing.T) {
	estimator := newTestEstimator()
	flat, err := testkit.NewSignalGenerator(testkit.DefaultSignalConfig()).GenerateFlat(5.0)
	if err != nil {
		t.Fatalf("Failed to generate flat signal: %v", err)
	}
	grid := power.Grid{Sizes: []int{16}, Sigmas: []float64{1.0}, Trials: 2}

	_, err = estimator.Estimate(context.Background(), testRequest(flat, grid))
	if !core.IsInsufficientDataError(err) {
		t.Errorf("Expected insufficient data error, got %v", err)
	}
}

func TestEstimator_CancelledContext(t *testing.T) {
	estimator := newTestEstimator()
	sig := backgroundSignal(t)
	grid := power.Grid{Sizes: []int{16}, Sigmas: []float64{1.0}, Trials: 4}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := estimator.Estimate(ctx, testRequest(sig, grid)); err == nil {
		t.Fatalf("Cancelled context should abort estimation")
	}
}
