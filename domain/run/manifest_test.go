package run

import (
	"testing"

	"gomotif/domain/core"
)

func TestFingerprint_Deterministic(t *testing.T) {
	// Golden test - same inputs produce identical fingerprints
	signalHash := core.SampleHash("test-signal")
	configHash := core.ConfigHash("test-config")
	seed := int64(42)
	codeVersion := "1.0.0"

	// Generate fingerprint twice with identical inputs
	fp1 := NewFingerprint(signalHash, configHash, seed, codeVersion)
	fp2 := NewFingerprint(signalHash, configHash, seed, codeVersion)

	// Should be identical
	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}

	// Should contain all determinism parameters
	if fp1.SignalHash != signalHash {
		t.Errorf("SignalHash mismatch: %s vs %s", fp1.SignalHash, signalHash)
	}
	if fp1.ConfigHash != configHash {
		t.Errorf("ConfigHash mismatch: %s vs %s", fp1.ConfigHash, configHash)
	}
	if fp1.Seed != seed {
		t.Errorf("Seed mismatch: %d vs %d", fp1.Seed, seed)
	}
	if fp1.CodeVersion != codeVersion {
		t.Errorf("CodeVersion mismatch: %s vs %s", fp1.CodeVersion, codeVersion)
	}
}

func TestFingerprint_Unique(t *testing.T) {
	// Different inputs should produce different fingerprints
	base := NewFingerprint(
		core.SampleHash("test-signal"),
		core.ConfigHash("test-config"),
		42,
		"1.0.0",
	)

	// Change each parameter and verify fingerprint changes
	testCases := []struct {
		name string
		fp   Fingerprint
	}{
		{"different signal", NewFingerprint(
			core.SampleHash("different-signal"), // changed
			core.ConfigHash("test-config"),
			42,
			"1.0.0",
		)},
		{"different config", NewFingerprint(
			core.SampleHash("test-signal"),
			core.ConfigHash("different-config"), // changed
			42,
			"1.0.0",
		)},
		{"different seed", NewFingerprint(
			core.SampleHash("test-signal"),
			core.ConfigHash("test-config"),
			43, // changed
			"1.0.0",
		)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should be different for %s", tc.name)
			}
		})
	}
}

func TestManifestArtifact_Complete(t *testing.T) {
	// Verify determinism tuple is complete
	runID := core.RunID("test-run")
	signalKey := core.SignalKey("sensor-7")
	cfg := DefaultConfig(42)

	manifest := NewManifestArtifact(runID, signalKey, 2048, core.SampleHash("test-signal"), cfg)

	// Verify all determinism fields are present
	if manifest.RunID != runID {
		t.Errorf("RunID not set correctly")
	}
	if manifest.SignalKey != signalKey {
		t.Errorf("SignalKey not set correctly")
	}
	if manifest.Seed != 42 {
		t.Errorf("Seed not set correctly")
	}
	if manifest.CodeVersion != cfg.CodeVersion {
		t.Errorf("CodeVersion not set correctly")
	}
	if manifest.ConfigHash != cfg.Hash() {
		t.Errorf("ConfigHash not derived from config")
	}

	// Verify fingerprint is computed
	if manifest.Fingerprint.Fingerprint == "" {
		t.Errorf("Fingerprint not computed")
	}

	// New manifests are trusted until a determinism check says otherwise
	if !manifest.Trusted {
		t.Errorf("New manifest should start trusted")
	}

	// Verify validation passes
	if err := manifest.Validate(); err != nil {
		t.Errorf("Manifest validation failed: %v", err)
	}
}

func TestManifestArtifact_MarkUntrusted(t *testing.T) {
	manifest := NewManifestArtifact(core.RunID("test-run"), core.SignalKey("sensor-7"),
		2048, core.SampleHash("test-signal"), DefaultConfig(42))

	manifest.MarkUntrusted("replay fingerprint mismatch")

	if manifest.Trusted {
		t.Errorf("Manifest should be untrusted after MarkUntrusted")
	}
	if manifest.TrustedReason == "" {
		t.Errorf("TrustedReason should carry the failure detail")
	}
	if manifest.RejectionCounts[WarningDeterminism] != 1 {
		t.Errorf("Determinism violation not tallied, got %d", manifest.RejectionCounts[WarningDeterminism])
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"zero draws", func(c *Config) { c.B = 0 }, true},
		{"alpha at one", func(c *Config) { c.Alpha = 1.0 }, true},
		{"alpha negative", func(c *Config) { c.Alpha = -0.05 }, true},
		{"unknown mode", func(c *Config) { c.Mode = "shuffle" }, true},
		{"percentile too high", func(c *Config) { c.ThresholdPercentile = 100 }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"empty power sizes", func(c *Config) { c.Power.Sizes = nil }, true},
		{"single stability seed", func(c *Config) { c.Stability.K = 1 }, true},
		{"zero jitter", func(c *Config) { c.Stability.JitterScale = 0 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig(42)
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("Expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
			if tc.wantErr && err != nil && !core.IsConfigError(err) {
				t.Errorf("Expected config error, got %v", err)
			}
		})
	}
}

func TestConfig_HashStable(t *testing.T) {
	a := DefaultConfig(42)
	b := DefaultConfig(42)

	if a.Hash() != b.Hash() {
		t.Errorf("Identical configs should hash identically")
	}

	c := DefaultConfig(42)
	c.Alpha = 0.10
	if a.Hash() == c.Hash() {
		t.Errorf("Different alpha should change the config hash")
	}
}
