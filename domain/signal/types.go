package signal

import (
	"fmt"
	"math"

	"gomotif/domain/core"
)

// Signal is a scored series the discovery step ran over. The engine never
// mutates a Signal; jitter and surrogate operations copy first.
type Signal struct {
	Key    core.SignalKey `json:"key"`
	Values []float64      `json:"values"`
}

// New validates and constructs a Signal.
func New(key core.SignalKey, values []float64) (*Signal, error) {
	if key.String() == "" {
		return nil, core.NewValidationError("key", "signal key cannot be empty")
	}
	if len(values) == 0 {
		return nil, core.ErrEmptySignal
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, core.NewValidationError("values", fmt.Sprintf("non-finite sample at index %d", i))
		}
	}
	return &Signal{Key: key, Values: values}, nil
}

// MustNew constructs a Signal and panics on invalid input. Test helper.
func MustNew(key core.SignalKey, values []float64) *Signal {
	s, err := New(key, values)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of samples.
func (s *Signal) Len() int { return len(s.Values) }

// Region is a half-open [Start, End) view into a signal. Regions are the
// unit of null sampling: a candidate's region is the stretch of signal it
// was drawn from.
type Region struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the region length in samples.
func (r Region) Len() int { return r.End - r.Start }

// Contains reports whether position p falls inside the region.
func (r Region) Contains(p int) bool { return p >= r.Start && p < r.End }

// Clamp restricts the region to the signal bounds.
func (r Region) Clamp(signalLen int) Region {
	out := r
	if out.Start < 0 {
		out.Start = 0
	}
	if out.End > signalLen {
		out.End = signalLen
	}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out
}

// Slice returns a copy of the region's samples. Copying keeps the caller
// free to permute without touching the underlying signal.
func (s *Signal) Slice(r Region) []float64 {
	r = r.Clamp(s.Len())
	out := make([]float64, r.Len())
	copy(out, s.Values[r.Start:r.End])
	return out
}

// Moments holds the marginal statistics a surrogate must reproduce.
type Moments struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	N      int     `json:"n"`
}

// RegionMoments computes mean and population standard deviation over a region.
func (s *Signal) RegionMoments(r Region) Moments {
	r = r.Clamp(s.Len())
	return MomentsOf(s.Values[r.Start:r.End])
}

// MomentsOf computes mean and population standard deviation of a sample slice.
func MomentsOf(values []float64) Moments {
	n := len(values)
	if n == 0 {
		return Moments{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	return Moments{
		Mean:   mean,
		StdDev: math.Sqrt(sq / float64(n)),
		N:      n,
	}
}

// WindowStat computes the standardized window score used throughout the
// engine: how far the window mean sits above the region baseline, scaled
// by sqrt(window size) so scores are comparable across motif lengths.
// Observed statistics and null draws must use the same formula.
func WindowStat(values []float64, center, size int, m Moments) float64 {
	if size <= 0 || m.StdDev == 0 {
		return 0
	}

	half := size / 2
	start := center - half
	end := start + size
	if start < 0 {
		start = 0
		end = size
	}
	if end > len(values) {
		end = len(values)
		start = end - size
		if start < 0 {
			start = 0
		}
	}
	if end <= start {
		return 0
	}

	var sum float64
	for _, v := range values[start:end] {
		sum += v
	}
	windowMean := sum / float64(end-start)

	return (windowMean - m.Mean) / m.StdDev * math.Sqrt(float64(size))
}
