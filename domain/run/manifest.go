package run

import (
	"crypto/sha256"
	"fmt"

	"gomotif/domain/core"
)

// Fingerprint ensures deterministic replay
type Fingerprint struct {
	SignalHash  core.SampleHash `json:"signal_hash"`
	ConfigHash  core.ConfigHash `json:"config_hash"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"` // Hash of all above
}

// NewFingerprint creates a fingerprint from determinism parameters
func NewFingerprint(signalHash core.SampleHash, configHash core.ConfigHash, seed int64, codeVersion string) Fingerprint {
	fingerprint := computeFingerprint(signalHash, configHash, seed, codeVersion)

	return Fingerprint{
		SignalHash:  signalHash,
		ConfigHash:  configHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: fingerprint,
	}
}

// computeFingerprint generates deterministic hash from all determinism parameters
func computeFingerprint(signalHash core.SampleHash, configHash core.ConfigHash, seed int64, codeVersion string) core.Hash {
	data := fmt.Sprintf("signal:%s|config:%s|seed:%d|code:%s",
		signalHash, configHash, seed, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// ManifestArtifact is the complete specification of a run. It is the truth
// source for replay and must exist before any result artifact.
type ManifestArtifact struct {
	RunID       core.RunID      `json:"run_id"`
	SignalKey   core.SignalKey  `json:"signal_key"`
	SignalLen   int             `json:"signal_len"`
	Config      Config          `json:"config"`
	ConfigHash  core.ConfigHash `json:"config_hash"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Fingerprint Fingerprint     `json:"fingerprint"`

	CandidatesFound     int   `json:"candidates_found"`
	CandidatesEvaluated int   `json:"candidates_evaluated"`
	CandidatesSkipped   int   `json:"candidates_skipped"`
	CandidatesSelected  int   `json:"candidates_selected"`
	RuntimeMs           int64 `json:"runtime_ms"`

	RejectionCounts map[WarningCode]int `json:"rejection_counts"` // Structured rejection codes
	ArtifactCounts  map[string]int      `json:"artifact_counts"`  // Count by artifact type

	// Trusted is cleared when the determinism self-check fails. Results of
	// an untrusted run are still stored but must not be relied on.
	Trusted       bool   `json:"trusted"`
	TrustedReason string `json:"trusted_reason,omitempty"`

	CreatedAt core.Timestamp `json:"created_at"`
}

// NewManifestArtifact creates a run manifest from a validated config.
func NewManifestArtifact(runID core.RunID, signalKey core.SignalKey, signalLen int,
	signalHash core.SampleHash, cfg Config) *ManifestArtifact {

	configHash := cfg.Hash()
	fingerprint := NewFingerprint(signalHash, configHash, cfg.Seed, cfg.CodeVersion)

	return &ManifestArtifact{
		RunID:           runID,
		SignalKey:       signalKey,
		SignalLen:       signalLen,
		Config:          cfg,
		ConfigHash:      configHash,
		Seed:            cfg.Seed,
		CodeVersion:     cfg.CodeVersion,
		Fingerprint:     fingerprint,
		RejectionCounts: make(map[WarningCode]int),
		ArtifactCounts:  make(map[string]int),
		Trusted:         true,
		CreatedAt:       core.Now(),
	}
}

// MarkUntrusted flags the whole run after a failed determinism check.
func (m *ManifestArtifact) MarkUntrusted(reason string) {
	m.Trusted = false
	m.TrustedReason = reason
	m.RejectionCounts[WarningDeterminism]++
}

// RecordSkip tallies one skipped candidate under its reason code.
func (m *ManifestArtifact) RecordSkip(reason WarningCode) {
	m.CandidatesSkipped++
	m.RejectionCounts[reason]++
}

// ToCoreArtifact converts to a core artifact for storage
func (m *ManifestArtifact) ToCoreArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactRunManifest,
		Payload:   m,
		CreatedAt: m.CreatedAt,
	}
}

// Validate checks if the manifest is complete
func (m *ManifestArtifact) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.SignalKey == "" {
		return core.NewValidationError("run_manifest", "signal_key cannot be empty")
	}
	if m.ConfigHash == "" {
		return core.NewValidationError("run_manifest", "config_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}

// SweepManifestArtifact captures the complete specification and results of a
// threshold sensitivity sweep.
type SweepManifestArtifact struct {
	SweepID   core.SweepID   `json:"sweep_id"`
	SignalKey core.SignalKey `json:"signal_key"`
	Seed      int64          `json:"seed"`

	Settings          []int              `json:"settings"`
	RunIDs            map[int]core.RunID `json:"run_ids"`
	CompletedSettings []int              `json:"completed_settings"`
	DiscardedSettings []int              `json:"discarded_settings"`
	RuntimeMs         int64              `json:"runtime_ms"`

	RejectionCounts map[WarningCode]int `json:"rejection_counts"` // Structured rejection codes
	ArtifactCounts  map[string]int      `json:"artifact_counts"`  // Count by artifact type

	Fingerprint core.Hash      `json:"fingerprint"` // Complete sweep fingerprint
	CreatedAt   core.Timestamp `json:"created_at"`
}

// NewSweepManifestArtifact creates a new sweep manifest with complete determinism metadata
func NewSweepManifestArtifact(sweepID core.SweepID, signalKey core.SignalKey, seed int64, settings []int) *SweepManifestArtifact {
	return &SweepManifestArtifact{
		SweepID:           sweepID,
		SignalKey:         signalKey,
		Seed:              seed,
		Settings:          settings,
		RunIDs:            make(map[int]core.RunID),
		CompletedSettings: []int{},
		DiscardedSettings: []int{},
		RejectionCounts:   make(map[WarningCode]int),
		ArtifactCounts:    make(map[string]int),
		Fingerprint:       computeSweepFingerprint(signalKey, seed, settings),
		CreatedAt:         core.Now(),
	}
}

func computeSweepFingerprint(signalKey core.SignalKey, seed int64, settings []int) core.Hash {
	data := fmt.Sprintf("signal:%s|seed:%d|settings:%v", signalKey, seed, settings)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// ToCoreArtifact converts to a core artifact for storage
func (s *SweepManifestArtifact) ToCoreArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactSweepManifest,
		Payload:   s,
		CreatedAt: s.CreatedAt,
	}
}
