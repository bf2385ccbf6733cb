package battery

import (
	"context"
	"math"
	"testing"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/internal/testkit"
	"gomotif/ports"
)

func testSignal(t *testing.T) *signal.Signal {
	t.Helper()
	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	sig, err := gen.Generate()
	if err != nil {
		t.Fatalf("Failed to generate signal: %v", err)
	}
	return sig
}

func testCandidate(t *testing.T, sig *signal.Signal, center, size int) motif.Candidate {
	t.Helper()
	region := signal.Region{Start: center - 4*size, End: center + 4*size}.Clamp(sig.Len())
	moments := sig.RegionMoments(region)
	stat := signal.WindowStat(sig.Slice(region), center-region.Start, size, moments)
	return motif.MustNewCandidate(motif.LabelFor(center, size), size, center, stat, region)
}

func TestNullBattery_RunBattery(t *testing.T) {
	ctx := context.Background()
	testKit, err := testkit.NewTestKit()
	if err != nil {
		t.Fatalf("Failed to create test kit: %v", err)
	}
	battery := NewNullBattery(testKit.RNGAdapter())
	sig := testSignal(t)

	tests := []struct {
		name        string
		mode        nullmodel.RandomizationMode
		description string
	}{
		{
			name:        "permutation mode fills every slot",
			mode:        nullmodel.ModePermutation,
			description: "Position permutation should produce B finite draws per candidate",
		},
		{
			name:        "surrogate mode fills every slot",
			mode:        nullmodel.ModeSurrogate,
			description: "Surrogate resampling should produce B finite draws per candidate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ports.BatteryRequest{
				RunID:        core.RunID("test-run"),
				Stage:        "null",
				Signal:       sig,
				Candidates:   []motif.Candidate{testCandidate(t, sig, 400, 32), testCandidate(t, sig, 1400, 16)},
				Mode:         tt.mode,
				B:            200,
				MinRegionLen: 30,
				Workers:      4,
				Seed:         42,
			}

			result, err := battery.RunBattery(ctx, req)
			if err != nil {
				t.Fatalf("RunBattery failed: %v", err)
			}

			if len(result.Sets) != 2 {
				t.Fatalf("Expected 2 sample sets, got %d", len(result.Sets))
			}
			if len(result.Skipped) != 0 {
				t.Errorf("Expected no skips, got %d", len(result.Skipped))
			}

			for i, set := range result.Sets {
				if set == nil {
					t.Fatalf("Slot %d not filled", i)
				}
				if set.Len() != req.B {
					t.Errorf("Set %d has %d draws, expected %d", i, set.Len(), req.B)
				}
				if set.Fingerprint == "" {
					t.Errorf("Set %d missing fingerprint", i)
				}
				for _, v := range set.Values {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						t.Fatalf("Set %d contains non-finite draw %v", i, v)
					}
				}
			}
		})
	}
}

func TestNullBattery_Deterministic(t *testing.T) {
	ctx := context.Background()
	testKit, _ := testkit.NewTestKit()
	battery := NewNullBattery(testKit.RNGAdapter())
	sig := testSignal(t)

	req := ports.BatteryRequest{
		RunID:        core.RunID("replay-run"),
		Stage:        "null",
		Signal:       sig,
		Candidates:   []motif.Candidate{testCandidate(t, sig, 400, 32), testCandidate(t, sig, 1400, 16)},
		Mode:         nullmodel.ModePermutation,
		B:            100,
		MinRegionLen: 30,
		Workers:      4,
		Seed:         42,
	}

	first, err := battery.RunBattery(ctx, req)
	if err != nil {
		t.Fatalf("First battery failed: %v", err)
	}
	second, err := battery.RunBattery(ctx, req)
	if err != nil {
		t.Fatalf("Second battery failed: %v", err)
	}

	for i := range first.Sets {
		if first.Sets[i].Fingerprint != second.Sets[i].Fingerprint {
			t.Errorf("Candidate %s not replayable: %s vs %s",
				first.Sets[i].Label, first.Sets[i].Fingerprint, second.Sets[i].Fingerprint)
		}
	}
}

func TestNullBattery_DistinctStreamsPerCandidate(t *testing.T) {
	ctx := context.Background()
	testKit, _ := testkit.NewTestKit()
	battery := NewNullBattery(testKit.RNGAdapter())
	sig := testSignal(t)

	// Same region and size, different labels: draws must differ
	region := signal.Region{Start: 300, End: 500}
	moments := sig.RegionMoments(region)
	stat := signal.WindowStat(sig.Slice(region), 100, 32, moments)
	a := motif.MustNewCandidate("candidate-a", 32, 400, stat, region)
	b := motif.MustNewCandidate("candidate-b", 32, 400, stat, region)

	result, err := battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        core.RunID("stream-run"),
		Stage:        "null",
		Signal:       sig,
		Candidates:   []motif.Candidate{a, b},
		Mode:         nullmodel.ModePermutation,
		B:            100,
		MinRegionLen: 30,
		Workers:      2,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("RunBattery failed: %v", err)
	}

	if result.Sets[0].Fingerprint == result.Sets[1].Fingerprint {
		t.Errorf("Candidates with different labels drew identical null samples")
	}
}

func TestNullBattery_ModeChangesDistribution(t *testing.T) {
	ctx := context.Background()
	testKit, _ := testkit.NewTestKit()
	battery := NewNullBattery(testKit.RNGAdapter())
	sig := testSignal(t)

	base := ports.BatteryRequest{
		RunID:        core.RunID("mode-run"),
		Stage:        "null",
		Signal:       sig,
		Candidates:   []motif.Candidate{testCandidate(t, sig, 400, 32)},
		B:            100,
		MinRegionLen: 30,
		Workers:      1,
		Seed:         42,
	}

	base.Mode = nullmodel.ModePermutation
	perm, err := battery.RunBattery(ctx, base)
	if err != nil {
		t.Fatalf("Permutation battery failed: %v", err)
	}

	base.Mode = nullmodel.ModeSurrogate
	surr, err := battery.RunBattery(ctx, base)
	if err != nil {
		t.Fatalf("Surrogate battery failed: %v", err)
	}

	if perm.Sets[0].Fingerprint == surr.Sets[0].Fingerprint {
		t.Errorf("Permutation and surrogate modes produced identical draws")
	}
}

func TestNullBattery_SkipsShortRegion(t *testing.T) {
	ctx := context.Background()
	testKit, _ := testkit.NewTestKit()
	battery := NewNullBattery(testKit.RNGAdapter())
	sig := testSignal(t)

	// Region of 40 samples cannot support a size-32 motif (needs 64)
	region := signal.Region{Start: 380, End: 420}
	moments := sig.RegionMoments(region)
	stat := signal.WindowStat(sig.Slice(region), 20, 32, moments)
	short := motif.MustNewCandidate("short-region", 32, 400, stat, region)

	result, err := battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        core.RunID("skip-run"),
		Stage:        "null",
		Signal:       sig,
		Candidates:   []motif.Candidate{short, testCandidate(t, sig, 1400, 16)},
		Mode:         nullmodel.ModePermutation,
		B:            50,
		MinRegionLen: 30,
		Workers:      2,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("RunBattery failed: %v", err)
	}

	if len(result.Sets) != 1 {
		t.Errorf("Expected 1 evaluable candidate, got %d", len(result.Sets))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("Expected 1 skip, got %d", len(result.Skipped))
	}
	if result.Skipped[0].ReasonCode != run.WarningShortRegion {
		t.Errorf("Expected %s, got %s", run.WarningShortRegion, result.Skipped[0].ReasonCode)
	}
	if result.Skipped[0].Label != "short-region" {
		t.Errorf("Skip names wrong candidate: %s", result.Skipped[0].Label)
	}
}

func TestNullBattery_SkipsZeroVariance(t *testing.T) {
	ctx := context.Background()
	testKit, _ := testkit.NewTestKit()
	battery := NewNullBattery(testKit.RNGAdapter())

	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	flat, err := gen.GenerateFlat(5.0)
	if err != nil {
		t.Fatalf("Failed to generate flat signal: %v", err)
	}

	region := signal.Region{Start: 100, End: 500}
	cand := motif.MustNewCandidate("flat-candidate", 16, 300, 0, region)

	result, err := battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        core.RunID("flat-run"),
		Stage:        "null",
		Signal:       flat,
		Candidates:   []motif.Candidate{cand},
		Mode:         nullmodel.ModePermutation,
		B:            50,
		MinRegionLen: 30,
		Workers:      1,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("RunBattery failed: %v", err)
	}

	if len(result.Skipped) != 1 {
		t.Fatalf("Expected 1 skip, got %d", len(result.Skipped))
	}
	if result.Skipped[0].ReasonCode != run.WarningZeroVariance {
		t.Errorf("Expected %s, got %s", run.WarningZeroVariance, result.Skipped[0].ReasonCode)
	}
}

func TestNullBattery_RejectsBadRequest(t *testing.T) {
	ctx := context.Background()
	testKit, _ := testkit.NewTestKit()
	battery := NewNullBattery(testKit.RNGAdapter())
	sig := testSignal(t)

	_, err := battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:      core.RunID("bad-run"),
		Stage:      "null",
		Signal:     sig,
		Candidates: []motif.Candidate{testCandidate(t, sig, 400, 32)},
		Mode:       nullmodel.ModePermutation,
		B:          0,
		Seed:       42,
	})
	if err == nil {
		t.Fatalf("Expected config error for b=0")
	}
	if !core.IsConfigError(err) {
		t.Errorf("Expected config error, got %v", err)
	}
}
