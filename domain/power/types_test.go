package power

import (
	"testing"

	"gomotif/domain/core"
)

func TestGrid_Validate(t *testing.T) {
	valid := Grid{Sizes: []int{8, 16}, Sigmas: []float64{0.5, 1.0}, Trials: 20}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Valid grid rejected: %v", err)
	}
	if valid.Cells() != 4 {
		t.Errorf("Cells = %d, want 4", valid.Cells())
	}

	tests := []struct {
		name string
		grid Grid
	}{
		{"no sizes", Grid{Sigmas: []float64{1.0}, Trials: 10}},
		{"no sigmas", Grid{Sizes: []int{8}, Trials: 10}},
		{"zero trials", Grid{Sizes: []int{8}, Sigmas: []float64{1.0}}},
		{"negative size", Grid{Sizes: []int{-8}, Sigmas: []float64{1.0}, Trials: 10}},
		{"zero sigma", Grid{Sizes: []int{8}, Sigmas: []float64{0}, Trials: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.grid.Validate(); !core.IsConfigError(err) {
				t.Errorf("Expected grid error, got %v", err)
			}
		})
	}
}

func TestTolerance_Matches(t *testing.T) {
	tol := Tolerance{CenterFrac: 0.5, SizeFactor: 2.0}

	tests := []struct {
		name               string
		injCenter, injSize int
		gotCenter, gotSize int
		want               bool
	}{
		{"exact recovery", 500, 16, 500, 16, true},
		{"center at edge of tolerance", 500, 16, 508, 16, true},
		{"center just outside", 500, 16, 509, 16, false},
		{"size at lower bound", 500, 16, 500, 8, true},
		{"size at upper bound", 500, 16, 500, 32, true},
		{"size too small", 500, 16, 500, 7, false},
		{"size too large", 500, 16, 500, 33, false},
		{"shifted left within tolerance", 500, 16, 493, 16, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tol.Matches(tt.injCenter, tt.injSize, tt.gotCenter, tt.gotSize)
			if got != tt.want {
				t.Errorf("Matches(%d,%d -> %d,%d) = %v, want %v",
					tt.injCenter, tt.injSize, tt.gotCenter, tt.gotSize, got, tt.want)
			}
		})
	}
}

func TestTolerance_Validate(t *testing.T) {
	if err := (Tolerance{CenterFrac: 0.5, SizeFactor: 2.0}).Validate(); err != nil {
		t.Fatalf("Valid tolerance rejected: %v", err)
	}
	if err := (Tolerance{CenterFrac: 0, SizeFactor: 2.0}).Validate(); !core.IsConfigError(err) {
		t.Errorf("Zero center tolerance must be rejected, got %v", err)
	}
	if err := (Tolerance{CenterFrac: 0.5, SizeFactor: 0.9}).Validate(); !core.IsConfigError(err) {
		t.Errorf("Size factor below 1 must be rejected, got %v", err)
	}
}

func TestCurve_CellFor(t *testing.T) {
	curve := Curve{
		RunID: core.RunID("run-1"),
		Cells: []Cell{
			{Size: 8, Sigma: 0.5, DetectionRate: 0.1, Trials: 20, Detected: 2},
			{Size: 16, Sigma: 2.0, DetectionRate: 0.9, Trials: 20, Detected: 18},
		},
	}

	cell, ok := curve.CellFor(16, 2.0)
	if !ok || cell.Detected != 18 {
		t.Errorf("CellFor(16, 2.0) = %+v, ok=%v", cell, ok)
	}
	if _, ok := curve.CellFor(32, 1.0); ok {
		t.Errorf("Missing cell must report ok=false")
	}
}
