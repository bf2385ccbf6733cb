package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gomotif/domain/nullmodel"
)

func defaultEngine() *EngineConfig {
	return &EngineConfig{
		Seed:                42,
		NullSamples:         500,
		Alpha:               0.05,
		Mode:                string(nullmodel.ModePermutation),
		ThresholdPercentile: 90,
		MinRegionLen:        30,
		Workers:             4,
	}
}

func TestParseSweepFile(t *testing.T) {
	data := []byte(`
settings: [85, 90, 95]
seed: 7
b: 200
alpha: 0.01
mode: surrogate
grid:
  sizes: [8, 16]
  sigmas: [0.5, 2.0]
  trials: 10
tolerance:
  center_frac: 0.25
  size_factor: 1.5
stability:
  k: 3
  jitter_scale: 0.02
  grouping_threshold: 0.5
  consensus_fraction: 0.5
  unstable_below: 0.4
`)

	file, err := ParseSweepFile(data)
	assert.NoError(t, err)
	assert.Equal(t, []int{85, 90, 95}, file.Settings)

	cfg, err := file.RunConfig(defaultEngine())
	assert.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed, "Seed override not applied")
	assert.Equal(t, 200, cfg.B, "Draw count override not applied")
	assert.Equal(t, 0.01, cfg.Alpha, "Alpha override not applied")
	assert.Equal(t, nullmodel.ModeSurrogate, cfg.Mode)
	assert.Equal(t, []int{8, 16}, cfg.Power.Sizes, "Grid sizes not applied")
	assert.Equal(t, 10, cfg.Power.Trials)
	assert.Equal(t, 0.25, cfg.Tolerance.CenterFrac, "Tolerance not applied")
	assert.Equal(t, 3, cfg.Stability.K, "Stability config not applied")
	assert.Equal(t, 0.02, cfg.Stability.JitterScale)
}

func TestParseSweepFile_DefaultsPreserved(t *testing.T) {
	file, err := ParseSweepFile([]byte("settings: [90]\n"))
	assert.NoError(t, err)

	cfg, err := file.RunConfig(defaultEngine())
	assert.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Seed, "Engine seed lost")
	assert.Equal(t, 500, cfg.B, "Engine draw count lost")
	assert.Equal(t, 5, cfg.Stability.K, "Default stability config lost")
}

func TestParseSweepFile_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no settings", "seed: 7\n"},
		{"malformed yaml", "settings: [85\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSweepFile([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEngineConfig_RunConfigValidates(t *testing.T) {
	engine := defaultEngine()
	engine.Alpha = 1.5
	_, err := engine.RunConfig()
	assert.Error(t, err, "Out-of-range alpha must be rejected")

	engine = defaultEngine()
	engine.Mode = "bogus"
	_, err = engine.RunConfig()
	assert.Error(t, err, "Unknown mode must be rejected")
}
