package detect

import (
	"context"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/signal"
)

// Config controls the reference z-score detector
type Config struct {
	Sizes         []int `json:"sizes"`          // Window sizes to scan
	RegionPad     int   `json:"region_pad"`     // Baseline halo per side, in multiples of window size
	MaxCandidates int   `json:"max_candidates"` // Cap across all sizes, highest scores kept
}

// DefaultConfig returns the standard detector parameterization
func DefaultConfig() Config {
	return Config{
		Sizes:         []int{8, 16, 32, 64},
		RegionPad:     4,
		MaxCandidates: 64,
	}
}

// ZScoreDetector proposes candidates where a window mean stands far above its
// local baseline. It is the built-in reference implementation of the detector
// port; the validation pipeline makes no assumption beyond the port contract,
// so richer discovery engines can replace it without touching the engine.
type ZScoreDetector struct {
	config Config
}

// NewZScoreDetector creates a detector with the given configuration
func NewZScoreDetector(config Config) *ZScoreDetector {
	return &ZScoreDetector{config: config}
}

// Detect scans every configured window size and returns candidates whose
// window score exceeds the threshold percentile of scores at that size.
// Overlapping hits are reduced to local maxima. Output is in label order.
func (d *ZScoreDetector) Detect(ctx context.Context, sig *signal.Signal, thresholdPercentile int) ([]motif.Candidate, error) {
	if sig == nil || sig.Len() == 0 {
		return nil, core.ErrEmptySignal
	}
	if thresholdPercentile <= 0 || thresholdPercentile >= 100 {
		return nil, fmt.Errorf("%w: threshold percentile must be in (0,100), got %d",
			core.ErrConfigInvalid, thresholdPercentile)
	}
	if len(d.config.Sizes) == 0 {
		return nil, fmt.Errorf("%w: detector has no window sizes", core.ErrConfigInvalid)
	}

	var all []motif.Candidate
	for _, size := range d.config.Sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if size < 1 || size > sig.Len() {
			continue
		}

		cands, err := d.scanSize(sig, size, thresholdPercentile)
		if err != nil {
			return nil, err
		}
		all = append(all, cands...)
	}

	// Keep the strongest hits when over the cap, then restore label order
	if d.config.MaxCandidates > 0 && len(all) > d.config.MaxCandidates {
		sort.Slice(all, func(i, j int) bool { return all[i].Stat > all[j].Stat })
		all = all[:d.config.MaxCandidates]
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Label < all[j].Label })

	return all, nil
}

// scanSize scores every center position at one window size and keeps
// suppressed local maxima above the threshold percentile.
func (d *ZScoreDetector) scanSize(sig *signal.Signal, size, thresholdPercentile int) ([]motif.Candidate, error) {
	n := sig.Len()
	pad := d.config.RegionPad * size

	scores := make([]float64, n)
	for center := 0; center < n; center++ {
		region := signal.Region{Start: center - pad, End: center + pad}.Clamp(n)
		moments := sig.RegionMoments(region)
		scores[center] = signal.WindowStat(sig.Values[region.Start:region.End], center-region.Start, size, moments)
	}

	threshold, err := stats.Percentile(scores, float64(thresholdPercentile))
	if err != nil {
		return nil, fmt.Errorf("score threshold at p%d: %w", thresholdPercentile, err)
	}

	// Centers strictly above threshold, strongest first
	type hit struct {
		center int
		score  float64
	}
	hits := make([]hit, 0)
	for center, score := range scores {
		if score > threshold {
			hits = append(hits, hit{center: center, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].center < hits[j].center
	})

	// Greedy non-maximum suppression within one window size
	taken := make([]int, 0)
	candidates := make([]motif.Candidate, 0)
	for _, h := range hits {
		suppressed := false
		for _, tc := range taken {
			if abs(h.center-tc) <= size {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		taken = append(taken, h.center)

		region := signal.Region{Start: h.center - pad, End: h.center + pad}.Clamp(n)
		cand, err := motif.NewCandidate(labelFor(h.center, size), size, h.center, h.score, region)
		if err != nil {
			continue
		}
		candidates = append(candidates, cand)
	}

	return candidates, nil
}

// labelFor buckets the center to half a window size before labeling, so a
// few samples of jitter do not rename an otherwise identical candidate.
func labelFor(center, size int) motif.Label {
	bucket := size / 2
	if bucket < 1 {
		bucket = 1
	}
	return motif.LabelFor(center-center%bucket, size)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
