package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID      ID
	SweepID    ID
	SignalKey  ID
	ArtifactID ID
)

// String conversions for domain IDs
func (id RunID) String() string      { return ID(id).String() }
func (id SweepID) String() string    { return ID(id).String() }
func (id SignalKey) String() string  { return ID(id).String() }
func (id ArtifactID) String() string { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseSweepID parses a string into SweepID
func ParseSweepID(s string) (SweepID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sweep ID cannot be empty")
	}
	return SweepID(s), nil
}

// ParseSignalKey parses a string into SignalKey
func ParseSignalKey(s string) (SignalKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("signal key cannot be empty")
	}
	return SignalKey(s), nil
}

// ParseArtifactID parses a string into ArtifactID
func ParseArtifactID(s string) (ArtifactID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("artifact ID cannot be empty")
	}
	return ArtifactID(s), nil
}

// Artifact represents any output of the system
type Artifact struct {
	ID        ID           `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Payload   interface{}  `json:"payload"`
	CreatedAt Timestamp    `json:"created_at"`
}

// ArtifactKind defines types of artifacts
type ArtifactKind string

const (
	// ArtifactCandidateTable is the evaluated candidate table for one run.
	ArtifactCandidateTable ArtifactKind = "candidate_table"
	// ArtifactNullSummary captures per-candidate null quantiles and the observed statistic.
	ArtifactNullSummary ArtifactKind = "null_summary"
	// ArtifactSkippedCandidate records why a candidate was not evaluated.
	ArtifactSkippedCandidate ArtifactKind = "skipped_candidate"
	// ArtifactPowerCurve holds detection rates over the injection grid.
	ArtifactPowerCurve ArtifactKind = "power_curve"
	// ArtifactStabilityMatrix holds pairwise Jaccard overlaps across jitter seeds.
	ArtifactStabilityMatrix ArtifactKind = "stability_matrix"
	// ArtifactConsensusSummary groups jitter selections into consensus sets.
	ArtifactConsensusSummary ArtifactKind = "consensus_summary"
	// ArtifactSensitivityTable compares candidates across cutoff settings.
	ArtifactSensitivityTable ArtifactKind = "sensitivity_table"
	// ArtifactRunManifest captures audit metadata for a single run.
	ArtifactRunManifest ArtifactKind = "run_manifest"
	// ArtifactSweepManifest captures audit metadata for a cutoff sweep.
	ArtifactSweepManifest ArtifactKind = "sweep_manifest"
	// ArtifactRunSummary is the human-readable markdown summary of a run.
	ArtifactRunSummary ArtifactKind = "run_summary"
)
