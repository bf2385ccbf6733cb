package run

import (
	"fmt"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/power"
)

// Status tracks a validation run through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run represents one execution of the validation pipeline over a signal.
type Run struct {
	ID          core.RunID     `json:"run_id"`
	SignalKey   core.SignalKey `json:"signal_key"`
	Status      Status         `json:"status"`
	Config      Config         `json:"config"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   core.Timestamp `json:"created_at"`
	CompletedAt core.Timestamp `json:"completed_at,omitempty"`
}

// Sweep represents one threshold sensitivity sweep, which executes a full
// validation run per detector setting over the same signal.
type Sweep struct {
	ID          core.SweepID   `json:"sweep_id"`
	SignalKey   core.SignalKey `json:"signal_key"`
	Status      Status         `json:"status"`
	Settings    []int          `json:"settings"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   core.Timestamp `json:"created_at"`
	CompletedAt core.Timestamp `json:"completed_at,omitempty"`
}

// StabilityConfig controls the jitter rerun analysis.
type StabilityConfig struct {
	K                 int     `json:"k"`
	JitterScale       float64 `json:"jitter_scale"`
	GroupingThreshold float64 `json:"grouping_threshold"`
	ConsensusFraction float64 `json:"consensus_fraction"`
	UnstableBelow     float64 `json:"unstable_below"`
}

// Config is the complete parameterization of a validation run. All fields
// are checked up front; a run never starts sampling with a bad config.
type Config struct {
	Seed                int64                       `json:"seed"`
	B                   int                         `json:"b"`
	Alpha               float64                     `json:"alpha"`
	Mode                nullmodel.RandomizationMode `json:"mode"`
	ThresholdPercentile int                         `json:"threshold_percentile"`
	MinRegionLen        int                         `json:"min_region_len"`
	Workers             int                         `json:"workers"`
	Power               power.Grid                  `json:"power"`
	Tolerance           power.Tolerance             `json:"tolerance"`
	Stability           StabilityConfig             `json:"stability"`
	CodeVersion         string                      `json:"code_version"`
}

// DefaultConfig returns the standard run parameterization.
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:                seed,
		B:                   500,
		Alpha:               0.05,
		Mode:                nullmodel.ModePermutation,
		ThresholdPercentile: 90,
		MinRegionLen:        30,
		Workers:             4,
		Power: power.Grid{
			Sizes:  []int{8, 16, 32},
			Sigmas: []float64{0.5, 1.0, 2.0},
			Trials: 20,
		},
		Tolerance: power.Tolerance{CenterFrac: 0.5, SizeFactor: 2.0},
		Stability: StabilityConfig{
			K:                 5,
			JitterScale:       0.05,
			GroupingThreshold: 0.5,
			ConsensusFraction: 0.5,
			UnstableBelow:     0.40,
		},
		CodeVersion: CodeVersion,
	}
}

// CodeVersion identifies the pipeline implementation in fingerprints.
const CodeVersion = "0.3.0"

// Validate checks the full configuration before any sampling begins.
func (c Config) Validate() error {
	if c.B < 1 {
		return fmt.Errorf("%w: b must be >= 1, got %d", core.ErrConfigInvalid, c.B)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("%w: alpha must be in (0,1), got %g", core.ErrConfigInvalid, c.Alpha)
	}
	if _, err := nullmodel.ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.ThresholdPercentile <= 0 || c.ThresholdPercentile >= 100 {
		return fmt.Errorf("%w: threshold percentile must be in (0,100), got %d", core.ErrConfigInvalid, c.ThresholdPercentile)
	}
	if c.MinRegionLen < 1 {
		return fmt.Errorf("%w: min region length must be >= 1, got %d", core.ErrConfigInvalid, c.MinRegionLen)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", core.ErrConfigInvalid, c.Workers)
	}
	if err := c.Power.Validate(); err != nil {
		return err
	}
	if err := c.Tolerance.Validate(); err != nil {
		return err
	}
	if c.Stability.K < 2 {
		return fmt.Errorf("%w: stability k must be >= 2, got %d", core.ErrConfigInvalid, c.Stability.K)
	}
	if c.Stability.JitterScale <= 0 {
		return fmt.Errorf("%w: jitter scale must be > 0, got %g", core.ErrConfigInvalid, c.Stability.JitterScale)
	}
	if c.Stability.GroupingThreshold <= 0 || c.Stability.GroupingThreshold > 1 {
		return fmt.Errorf("%w: grouping threshold must be in (0,1], got %g", core.ErrConfigInvalid, c.Stability.GroupingThreshold)
	}
	if c.Stability.ConsensusFraction <= 0 || c.Stability.ConsensusFraction > 1 {
		return fmt.Errorf("%w: consensus fraction must be in (0,1], got %g", core.ErrConfigInvalid, c.Stability.ConsensusFraction)
	}
	if c.Stability.UnstableBelow < 0 || c.Stability.UnstableBelow > 1 {
		return fmt.Errorf("%w: unstable-below must be in [0,1], got %g", core.ErrConfigInvalid, c.Stability.UnstableBelow)
	}
	return nil
}

// Hash returns the deterministic config fingerprint used in manifests.
func (c Config) Hash() core.ConfigHash {
	return core.ComputeConfigHash(map[string]interface{}{
		"seed":                 c.Seed,
		"b":                    c.B,
		"alpha":                c.Alpha,
		"mode":                 string(c.Mode),
		"threshold_percentile": c.ThresholdPercentile,
		"min_region_len":       c.MinRegionLen,
		"power_sizes":          c.Power.Sizes,
		"power_sigmas":         c.Power.Sigmas,
		"power_trials":         c.Power.Trials,
		"tol_center_frac":      c.Tolerance.CenterFrac,
		"tol_size_factor":      c.Tolerance.SizeFactor,
		"stability_k":          c.Stability.K,
		"jitter_scale":         c.Stability.JitterScale,
		"code_version":         c.CodeVersion,
	})
}

// WarningCode represents structured warning types
type WarningCode string

const (
	WarningShortRegion      WarningCode = "SHORT_REGION"          // Region shorter than the null-model minimum
	WarningZeroVariance     WarningCode = "ZERO_VARIANCE"         // Region has no variation to permute
	WarningInsufficientData WarningCode = "INSUFFICIENT_DATA"     // Catch-all for unevaluable candidates
	WarningDeterminism      WarningCode = "DETERMINISM_VIOLATION" // Replay produced a different fingerprint
	WarningLowStability     WarningCode = "LOW_STABILITY"         // Selection frequency under threshold
)

// SkippedCandidateArtifact records why a candidate was not evaluated. Skips
// are first-class outputs, never silent.
type SkippedCandidateArtifact struct {
	RunID       core.RunID     `json:"run_id"`
	Label       motif.Label    `json:"label"`
	ReasonCode  WarningCode    `json:"reason_code"`
	Detail      string         `json:"detail,omitempty"`
	Counts      map[string]int `json:"counts"`
	FirstSeenAt core.Timestamp `json:"first_seen_at"`
}

// NewSkippedCandidateArtifact creates a skipped candidate record.
func NewSkippedCandidateArtifact(runID core.RunID, label motif.Label, reason WarningCode, detail string) *SkippedCandidateArtifact {
	return &SkippedCandidateArtifact{
		RunID:       runID,
		Label:       label,
		ReasonCode:  reason,
		Detail:      detail,
		Counts:      make(map[string]int),
		FirstSeenAt: core.Now(),
	}
}

// ToCoreArtifact converts to a core artifact for storage
func (s *SkippedCandidateArtifact) ToCoreArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactSkippedCandidate,
		Payload:   s,
		CreatedAt: s.FirstSeenAt,
	}
}

// SummaryArtifact is the human-readable run summary, stored as markdown
// and rendered by the console.
type SummaryArtifact struct {
	RunID     core.RunID     `json:"run_id"`
	Markdown  string         `json:"markdown"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// ToCoreArtifact converts to a core artifact for storage
func (s *SummaryArtifact) ToCoreArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactRunSummary,
		Payload:   s,
		CreatedAt: s.CreatedAt,
	}
}
