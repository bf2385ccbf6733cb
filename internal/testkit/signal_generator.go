package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/signal"
)

// PlantedMotif describes a bump injected into a generated signal
type PlantedMotif struct {
	Center    int     `json:"center"`
	Size      int     `json:"size"`
	Amplitude float64 `json:"amplitude"`
}

// SignalGeneratorConfig configures the synthetic signal generator
type SignalGeneratorConfig struct {
	Key        string         `json:"key"`
	Length     int            `json:"length"`
	NoiseSigma float64        `json:"noise_sigma"`
	Trend      float64        `json:"trend"`
	Seed       int64          `json:"seed"`
	Motifs     []PlantedMotif `json:"motifs"`
}

// DefaultSignalConfig returns sensible defaults for signal generation
func DefaultSignalConfig() SignalGeneratorConfig {
	return SignalGeneratorConfig{
		Key:        "synthetic-1",
		Length:     2048,
		NoiseSigma: 1.0,
		Trend:      0.0,
		Seed:       42,
		Motifs: []PlantedMotif{
			{Center: 400, Size: 32, Amplitude: 3.0},
			{Center: 1400, Size: 16, Amplitude: 4.0},
		},
	}
}

// SignalGenerator generates synthetic signals with known planted motifs
type SignalGenerator struct {
	config SignalGeneratorConfig
	rng    *rand.Rand
}

// NewSignalGenerator creates a new signal generator
func NewSignalGenerator(config SignalGeneratorConfig) *SignalGenerator {
	return &SignalGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate produces the configured signal: Gaussian noise, optional linear
// trend, and a raised-cosine bump for every planted motif.
func (g *SignalGenerator) Generate() (*signal.Signal, error) {
	if g.config.Length < 1 {
		return nil, fmt.Errorf("signal length must be >= 1, got %d", g.config.Length)
	}

	values := make([]float64, g.config.Length)
	for i := range values {
		values[i] = g.rng.NormFloat64()*g.config.NoiseSigma + g.config.Trend*float64(i)
	}

	for _, m := range g.config.Motifs {
		plantBump(values, m)
	}

	return signal.New(core.SignalKey(g.config.Key), values)
}

// GenerateFlat produces a constant signal, useful for zero-variance cases
func (g *SignalGenerator) GenerateFlat(value float64) (*signal.Signal, error) {
	values := make([]float64, g.config.Length)
	for i := range values {
		values[i] = value
	}
	return signal.New(core.SignalKey(g.config.Key), values)
}

// plantBump adds a raised-cosine bump so edges taper instead of stepping
func plantBump(values []float64, m PlantedMotif) {
	half := m.Size / 2
	start := m.Center - half
	for i := 0; i < m.Size; i++ {
		pos := start + i
		if pos < 0 || pos >= len(values) {
			continue
		}
		phase := float64(i) / float64(m.Size)
		values[pos] += m.Amplitude * 0.5 * (1 - math.Cos(2*math.Pi*phase))
	}
}

// PlantedCandidates returns candidates matching the generator's planted
// motifs, labeled the way the detector labels center buckets.
func (g *SignalGenerator) PlantedCandidates(sig *signal.Signal) []motif.Candidate {
	out := make([]motif.Candidate, 0, len(g.config.Motifs))
	for _, m := range g.config.Motifs {
		region := signal.Region{Start: m.Center - 4*m.Size, End: m.Center + 4*m.Size}.Clamp(sig.Len())
		moments := sig.RegionMoments(region)
		stat := signal.WindowStat(sig.Slice(region), m.Center-region.Start, m.Size, moments)

		cand, err := motif.NewCandidate(motif.LabelFor(m.Center, m.Size), m.Size, m.Center, stat, region)
		if err != nil {
			continue
		}
		out = append(out, cand)
	}
	return out
}
