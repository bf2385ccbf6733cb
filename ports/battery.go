package ports

import (
	"context"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/run"
	"gomotif/domain/signal"
)

// NullBatteryPort draws null reference distributions for candidate motifs
type NullBatteryPort interface {
	RunBattery(ctx context.Context, req BatteryRequest) (*BatteryResult, error)
}

// BatteryRequest specifies one null sampling pass over a candidate set.
// Stage distinguishes the baseline pass from jitter reruns so their RNG
// streams never collide.
type BatteryRequest struct {
	RunID        core.RunID
	Stage        string
	Signal       *signal.Signal
	Candidates   []motif.Candidate
	Mode         nullmodel.RandomizationMode
	B            int
	MinRegionLen int
	Workers      int
	Seed         int64
}

// BatteryResult contains the outcome of a null sampling pass. Sets holds one
// sample set per evaluable candidate; Skipped records the rest with reasons.
type BatteryResult struct {
	Sets    []*nullmodel.SampleSet
	Skipped []*run.SkippedCandidateArtifact
}
