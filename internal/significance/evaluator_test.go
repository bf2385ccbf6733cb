package significance

import (
	"errors"
	"math"
	"testing"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/signal"
)

func makeCandidate(t *testing.T, label string, stat float64) motif.Candidate {
	t.Helper()
	region := signal.Region{Start: 0, End: 200}
	return motif.MustNewCandidate(motif.Label(label), 16, 100, stat, region)
}

func makeSampleSet(t *testing.T, label string, values []float64) *nullmodel.SampleSet {
	t.Helper()
	set, err := nullmodel.NewSampleSet(motif.Label(label), nullmodel.ModePermutation, 42, values)
	if err != nil {
		t.Fatalf("Failed to build sample set: %v", err)
	}
	return set
}

func constantValues(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEvaluator_PValueFormula(t *testing.T) {
	tests := []struct {
		name       string
		stat       float64
		nulls      []float64
		alpha      float64
		wantP      float64
		wantSelect bool
	}{
		{
			name:       "all nulls below observed",
			stat:       10.0,
			nulls:      constantValues(99, 1.0),
			alpha:      0.05,
			wantP:      1.0 / 100.0,
			wantSelect: true,
		},
		{
			name:       "all nulls above observed",
			stat:       1.0,
			nulls:      constantValues(99, 10.0),
			alpha:      0.05,
			wantP:      1.0,
			wantSelect: false,
		},
		{
			name:       "ties count as extreme",
			stat:       5.0,
			nulls:      constantValues(99, 5.0),
			alpha:      0.05,
			wantP:      1.0,
			wantSelect: false,
		},
		{
			name:       "p equal to alpha is not selected",
			stat:       10.0,
			nulls:      constantValues(19, 1.0),
			alpha:      0.05,
			wantP:      0.05,
			wantSelect: false,
		},
		{
			name:       "single draw below keeps p off zero",
			stat:       10.0,
			nulls:      []float64{1.0},
			alpha:      0.6,
			wantP:      0.5,
			wantSelect: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewEvaluator(tt.alpha)
			if err != nil {
				t.Fatalf("NewEvaluator failed: %v", err)
			}

			cand := makeCandidate(t, "cand-1", tt.stat)
			set := makeSampleSet(t, "cand-1", tt.nulls)

			evaluated, summary, err := evaluator.Evaluate(cand, set)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			if math.Abs(evaluated.PValue-tt.wantP) > 1e-12 {
				t.Errorf("PValue = %v, want %v", evaluated.PValue, tt.wantP)
			}
			if evaluated.Selected != tt.wantSelect {
				t.Errorf("Selected = %v, want %v", evaluated.Selected, tt.wantSelect)
			}
			if !evaluated.Evaluated {
				t.Errorf("Candidate not marked evaluated")
			}
			if evaluated.PValue <= 0 {
				t.Errorf("PValue must never reach zero, got %v", evaluated.PValue)
			}
			if summary.B != len(tt.nulls) {
				t.Errorf("Summary B = %d, want %d", summary.B, len(tt.nulls))
			}
			if summary.PValue != evaluated.PValue {
				t.Errorf("Summary p-value %v disagrees with candidate %v", summary.PValue, evaluated.PValue)
			}
		})
	}
}

func TestEvaluator_ConsumeOnce(t *testing.T) {
	evaluator, _ := NewEvaluator(0.05)
	cand := makeCandidate(t, "cand-1", 10.0)
	set := makeSampleSet(t, "cand-1", constantValues(50, 1.0))

	if _, _, err := evaluator.Evaluate(cand, set); err != nil {
		t.Fatalf("First evaluation failed: %v", err)
	}

	_, _, err := evaluator.Evaluate(cand, set)
	if err == nil {
		t.Fatalf("Second evaluation of the same set should fail")
	}
	if !errors.Is(err, core.ErrNullConsumed) {
		t.Errorf("Expected ErrNullConsumed, got %v", err)
	}
}

func TestEvaluator_LabelMismatch(t *testing.T) {
	evaluator, _ := NewEvaluator(0.05)
	cand := makeCandidate(t, "cand-1", 10.0)
	set := makeSampleSet(t, "cand-2", constantValues(50, 1.0))

	if _, _, err := evaluator.Evaluate(cand, set); err == nil {
		t.Fatalf("Evaluating against another candidate's nulls should fail")
	}
}

func TestEvaluator_SummaryQuantiles(t *testing.T) {
	evaluator, _ := NewEvaluator(0.05)
	cand := makeCandidate(t, "cand-1", 100.0)

	// 1..100 gives known, strictly increasing quantiles
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	set := makeSampleSet(t, "cand-1", values)

	_, summary, err := evaluator.Evaluate(cand, set)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	ordered := []float64{
		summary.Null1Pct, summary.Null5Pct, summary.Null25Pct, summary.NullMedian,
		summary.Null75Pct, summary.Null95Pct, summary.Null99Pct,
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i] < ordered[i-1] {
			t.Errorf("Quantiles out of order at %d: %v", i, ordered)
		}
	}
	if summary.NullMedian < 40 || summary.NullMedian > 60 {
		t.Errorf("Median of 1..100 should be near 50, got %v", summary.NullMedian)
	}
	if summary.TObs != 100.0 {
		t.Errorf("TObs = %v, want 100", summary.TObs)
	}
}

func TestEvaluator_EvaluateAll_Misaligned(t *testing.T) {
	evaluator, _ := NewEvaluator(0.05)
	cands := []motif.Candidate{makeCandidate(t, "cand-1", 1.0)}

	if _, _, err := evaluator.EvaluateAll(cands, nil); err == nil {
		t.Fatalf("Misaligned inputs should fail")
	}
}

func TestNewEvaluator_RejectsBadAlpha(t *testing.T) {
	for _, alpha := range []float64{0, 1, -0.1, 1.5} {
		if _, err := NewEvaluator(alpha); err == nil {
			t.Errorf("Expected error for alpha %v", alpha)
		}
	}
}
