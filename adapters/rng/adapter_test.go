package rng

import (
	"context"
	"testing"

	"gomotif/domain/core"
)

func drawN(t *testing.T, a *Adapter, runID, stage, key string, seed int64, n int) []float64 {
	t.Helper()
	stream, err := a.Stream(context.Background(), runID, stage, key, seed)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = stream.Float64()
	}
	return out
}

func TestStream_Deterministic(t *testing.T) {
	a := New()

	first := drawN(t, a, "run-1", "null", "m00400_w032", 42, 16)
	second := drawN(t, a, "run-1", "null", "m00400_w032", 42, 16)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Draw %d differs between identical streams: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestStream_DistinctPerCandidate(t *testing.T) {
	a := New()

	first := drawN(t, a, "run-1", "null", "m00400_w032", 42, 8)
	second := drawN(t, a, "run-1", "null", "m01400_w016", 42, 8)

	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("Streams for different candidates produced identical draws")
	}
}

func TestStream_DistinctPerStage(t *testing.T) {
	a := New()

	base := drawN(t, a, "run-1", "null", "m00400_w032", 42, 8)
	jitter := drawN(t, a, "run-1", "stability:1", "m00400_w032", 42, 8)

	same := true
	for i := range base {
		if base[i] != jitter[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("Baseline and jitter streams produced identical draws")
	}
}

func TestStream_DistinctPerSeed(t *testing.T) {
	a := New()

	first := drawN(t, a, "run-1", "null", "m00400_w032", 42, 8)
	second := drawN(t, a, "run-1", "null", "m00400_w032", 43, 8)

	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("Streams for different base seeds produced identical draws")
	}
}

func TestSeededStream_Replays(t *testing.T) {
	ctx := context.Background()
	a := New()

	first, err := a.SeededStream(ctx, "probe", 42)
	if err != nil {
		t.Fatalf("SeededStream failed: %v", err)
	}
	second, err := a.SeededStream(ctx, "probe", 42)
	if err != nil {
		t.Fatalf("SeededStream failed: %v", err)
	}

	for i := 0; i < 16; i++ {
		if got, want := second.Float64(), first.Float64(); got != want {
			t.Fatalf("Draw %d differs on replay: %v vs %v", i, got, want)
		}
	}
}

func TestValidateSeed_AcceptsRecordedDraws(t *testing.T) {
	ctx := context.Background()
	a := New()

	stream, err := a.SeededStream(ctx, "probe", 42)
	if err != nil {
		t.Fatalf("SeededStream failed: %v", err)
	}
	recorded := make([]float64, 4)
	for i := range recorded {
		recorded[i] = stream.Float64()
	}

	if err := a.ValidateSeed(ctx, "probe", 42, recorded); err != nil {
		t.Errorf("ValidateSeed rejected its own draws: %v", err)
	}
}

func TestValidateSeed_RejectsForeignDraws(t *testing.T) {
	ctx := context.Background()
	a := New()

	err := a.ValidateSeed(ctx, "probe", 42, []float64{0.1, 0.2, 0.3})
	if err == nil {
		t.Fatalf("ValidateSeed accepted draws from a different stream")
	}
	if !core.IsDeterminismError(err) {
		t.Errorf("Expected determinism error, got %v", err)
	}
}

func TestValidateSeed_EmptyExpectationPasses(t *testing.T) {
	if err := New().ValidateSeed(context.Background(), "probe", 42, nil); err != nil {
		t.Errorf("ValidateSeed with no expectations failed: %v", err)
	}
}
