package nullmodel

import (
	"fmt"

	"gomotif/domain/core"
	"gomotif/domain/motif"
)

// RandomizationMode selects how null statistics are drawn.
type RandomizationMode string

const (
	// ModePermutation shuffles the candidate's region in place and
	// recomputes the window statistic on the shuffled values.
	ModePermutation RandomizationMode = "permutation"
	// ModeSurrogate regenerates the region from a Gaussian surrogate
	// matching the region's marginal mean and standard deviation.
	ModeSurrogate RandomizationMode = "surrogate"
)

// ParseMode validates a randomization mode string.
func ParseMode(s string) (RandomizationMode, error) {
	switch RandomizationMode(s) {
	case ModePermutation, ModeSurrogate:
		return RandomizationMode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown randomization mode %q", core.ErrConfigInvalid, s)
	}
}

// SampleSet is one candidate's ordered null draws.
//
// Invariants:
//   - exactly B values, produced by a single deterministic stream
//   - values are never mutated after generation; Fingerprint proves it
//   - consumed exactly once; a second Consume is an error
type SampleSet struct {
	Label       motif.Label       `json:"label"`
	Mode        RandomizationMode `json:"mode"`
	StreamSeed  int64             `json:"stream_seed"`
	Values      []float64         `json:"values"`
	Fingerprint core.SampleHash   `json:"fingerprint"`

	consumed bool
}

// NewSampleSet validates and fingerprints a freshly drawn sample set.
func NewSampleSet(label motif.Label, mode RandomizationMode, streamSeed int64, values []float64) (*SampleSet, error) {
	if label == "" {
		return nil, core.NewValidationError("label", "sample set label cannot be empty")
	}
	if len(values) == 0 {
		return nil, core.NewValidationError("values", "sample set cannot be empty")
	}
	return &SampleSet{
		Label:       label,
		Mode:        mode,
		StreamSeed:  streamSeed,
		Values:      values,
		Fingerprint: core.ComputeSampleHash(values),
	}, nil
}

// Len returns B, the number of draws.
func (s *SampleSet) Len() int { return len(s.Values) }

// Consume hands the values to the caller exactly once.
func (s *SampleSet) Consume() ([]float64, error) {
	if s.consumed {
		return nil, fmt.Errorf("%w: %s", core.ErrNullConsumed, s.Label)
	}
	s.consumed = true
	return s.Values, nil
}

// Consumed reports whether the set has been handed out.
func (s *SampleSet) Consumed() bool { return s.consumed }

// Summary is the per-candidate null diagnostic record. Column names match
// the null summary table exchanged with downstream consumers.
type Summary struct {
	CandidateID string  `json:"candidate_id"`
	TObs        float64 `json:"t_obs"`
	Null1Pct    float64 `json:"null_1pct"`
	Null5Pct    float64 `json:"null_5pct"`
	Null25Pct   float64 `json:"null_25pct"`
	NullMedian  float64 `json:"null_median"`
	Null75Pct   float64 `json:"null_75pct"`
	Null95Pct   float64 `json:"null_95pct"`
	Null99Pct   float64 `json:"null_99pct"`
	B           int     `json:"b"`
	PValue      float64 `json:"pval"`
	Selected    bool    `json:"selected"`
}

// SummaryTable is the full null summary artifact for one run.
type SummaryTable struct {
	RunID core.RunID `json:"run_id"`
	Rows  []Summary  `json:"rows"`
}
