package power

import (
	"fmt"

	"gomotif/domain/core"
)

// Grid is the injection design: every (size, sigma) pair is estimated
// from the same number of independent trials.
type Grid struct {
	Sizes  []int     `json:"sizes"`
	Sigmas []float64 `json:"sigmas"`
	Trials int       `json:"trials"`
}

// Validate checks the grid before any trial runs.
func (g Grid) Validate() error {
	if len(g.Sizes) == 0 {
		return fmt.Errorf("%w: no injection sizes", core.ErrInvalidGrid)
	}
	if len(g.Sigmas) == 0 {
		return fmt.Errorf("%w: no injection sigmas", core.ErrInvalidGrid)
	}
	if g.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", core.ErrInvalidGrid, g.Trials)
	}
	for _, s := range g.Sizes {
		if s <= 0 {
			return fmt.Errorf("%w: injection size must be positive, got %d", core.ErrInvalidGrid, s)
		}
	}
	for _, s := range g.Sigmas {
		if s <= 0 {
			return fmt.Errorf("%w: injection sigma must be positive, got %g", core.ErrInvalidGrid, s)
		}
	}
	return nil
}

// Cells returns the number of (size, sigma) pairs.
func (g Grid) Cells() int { return len(g.Sizes) * len(g.Sigmas) }

// Trial is the outcome of one injection attempt.
type Trial struct {
	Size     int     `json:"inject_size"`
	Sigma    float64 `json:"sigma"`
	Index    int     `json:"trial_index"`
	Center   int     `json:"center"`
	Detected bool    `json:"detected"`
}

// Cell aggregates trials for one grid point. Trials is reported alongside
// the rate so consumers can judge estimator variance; a zero rate over
// many trials is a valid result, not an error.
type Cell struct {
	Size          int     `json:"inject_size"`
	Sigma         float64 `json:"sigma"`
	DetectionRate float64 `json:"detection_rate"`
	Trials        int     `json:"trials"`
	Detected      int     `json:"detected"`
}

// Curve is the full power surface for one run configuration.
type Curve struct {
	RunID core.RunID `json:"run_id"`
	Cells []Cell     `json:"cells"`
}

// CellFor returns the cell for a (size, sigma) pair.
func (c Curve) CellFor(size int, sigma float64) (Cell, bool) {
	for _, cell := range c.Cells {
		if cell.Size == size && cell.Sigma == sigma {
			return cell, true
		}
	}
	return Cell{}, false
}

// Tolerance defines when a recovered candidate counts as the injected
// motif. Both knobs are configuration, not constants: center must fall
// within CenterFrac×size of the injection center, and recovered size must
// lie within [size/SizeFactor, size×SizeFactor].
type Tolerance struct {
	CenterFrac float64 `json:"center_frac"`
	SizeFactor float64 `json:"size_factor"`
}

// Validate checks tolerance bounds.
func (t Tolerance) Validate() error {
	if t.CenterFrac <= 0 {
		return fmt.Errorf("%w: center tolerance fraction must be positive, got %g", core.ErrConfigInvalid, t.CenterFrac)
	}
	if t.SizeFactor < 1 {
		return fmt.Errorf("%w: size tolerance factor must be >= 1, got %g", core.ErrConfigInvalid, t.SizeFactor)
	}
	return nil
}

// Matches reports whether a recovered (center, size) overlaps the
// injection site within tolerance.
func (t Tolerance) Matches(injCenter, injSize, gotCenter, gotSize int) bool {
	maxShift := t.CenterFrac * float64(injSize)
	shift := float64(gotCenter - injCenter)
	if shift < 0 {
		shift = -shift
	}
	if shift > maxShift {
		return false
	}

	lo := float64(injSize) / t.SizeFactor
	hi := float64(injSize) * t.SizeFactor
	return float64(gotSize) >= lo && float64(gotSize) <= hi
}
