package detect

import (
	"context"
	"testing"

	"gomotif/domain/core"
	"gomotif/internal/testkit"
)

func TestZScoreDetector_FindsPlantedMotifs(t *testing.T) {
	ctx := context.Background()
	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	sig, err := gen.Generate()
	if err != nil {
		t.Fatalf("Failed to generate signal: %v", err)
	}

	detector := NewZScoreDetector(DefaultConfig())
	candidates, err := detector.Detect(ctx, sig, 95)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatalf("Detector found nothing in a signal with planted motifs")
	}

	// Both planted centers should be covered by some candidate region
	planted := []int{400, 1400}
	for _, center := range planted {
		covered := false
		for _, cand := range candidates {
			if cand.Region.Contains(center) && abs(cand.Center-center) <= 2*cand.Size {
				covered = true
				break
			}
		}
		if !covered {
			t.Errorf("Planted motif at %d not covered by any candidate", center)
		}
	}
}

func TestZScoreDetector_Deterministic(t *testing.T) {
	ctx := context.Background()
	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	sig, err := gen.Generate()
	if err != nil {
		t.Fatalf("Failed to generate signal: %v", err)
	}

	detector := NewZScoreDetector(DefaultConfig())

	first, err := detector.Detect(ctx, sig, 90)
	if err != nil {
		t.Fatalf("First detect failed: %v", err)
	}
	second, err := detector.Detect(ctx, sig, 90)
	if err != nil {
		t.Fatalf("Second detect failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Candidate counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Label != second[i].Label || first[i].Stat != second[i].Stat {
			t.Errorf("Candidate %d differs between identical runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestZScoreDetector_StableLabelOrder(t *testing.T) {
	ctx := context.Background()
	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	sig, err := gen.Generate()
	if err != nil {
		t.Fatalf("Failed to generate signal: %v", err)
	}

	detector := NewZScoreDetector(DefaultConfig())
	candidates, err := detector.Detect(ctx, sig, 90)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	for i := 1; i < len(candidates); i++ {
		if candidates[i-1].Label >= candidates[i].Label {
			t.Errorf("Labels out of order at %d: %s >= %s", i, candidates[i-1].Label, candidates[i].Label)
		}
	}
}

func TestZScoreDetector_HigherThresholdFindsFewer(t *testing.T) {
	ctx := context.Background()
	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	sig, err := gen.Generate()
	if err != nil {
		t.Fatalf("Failed to generate signal: %v", err)
	}

	detector := NewZScoreDetector(DefaultConfig())

	loose, err := detector.Detect(ctx, sig, 85)
	if err != nil {
		t.Fatalf("Detect at p85 failed: %v", err)
	}
	strict, err := detector.Detect(ctx, sig, 95)
	if err != nil {
		t.Fatalf("Detect at p95 failed: %v", err)
	}

	if len(strict) > len(loose) {
		t.Errorf("Stricter threshold found more candidates: p95=%d p85=%d", len(strict), len(loose))
	}
}

func TestZScoreDetector_FlatSignalFindsNothing(t *testing.T) {
	ctx := context.Background()
	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	flat, err := gen.GenerateFlat(1.0)
	if err != nil {
		t.Fatalf("Failed to generate flat signal: %v", err)
	}

	detector := NewZScoreDetector(DefaultConfig())
	candidates, err := detector.Detect(ctx, flat, 90)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Flat signal produced %d candidates", len(candidates))
	}
}

func TestZScoreDetector_RejectsBadThreshold(t *testing.T) {
	ctx := context.Background()
	gen := testkit.NewSignalGenerator(testkit.DefaultSignalConfig())
	sig, err := gen.Generate()
	if err != nil {
		t.Fatalf("Failed to generate signal: %v", err)
	}

	detector := NewZScoreDetector(DefaultConfig())
	for _, pct := range []int{0, 100, -5} {
		if _, err := detector.Detect(ctx, sig, pct); err == nil {
			t.Errorf("Expected config error for percentile %d", pct)
		} else if !core.IsConfigError(err) {
			t.Errorf("Expected config error for percentile %d, got %v", pct, err)
		}
	}
}
