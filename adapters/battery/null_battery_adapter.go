package battery

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/ports"
)

// NullBattery implements null reference sampling for candidate motifs.
// Each candidate gets its own RNG stream derived from the run seed, so
// candidates can be sampled concurrently without losing replayability.
type NullBattery struct {
	rngPort ports.RNGPort
}

// NewNullBattery creates a null battery backed by the given RNG port
func NewNullBattery(rngPort ports.RNGPort) *NullBattery {
	return &NullBattery{rngPort: rngPort}
}

// batteryOutcome carries one worker result back to the collector. The index
// pins the result to its output slot regardless of completion order.
type batteryOutcome struct {
	index int
	set   *nullmodel.SampleSet
	err   error
}

// RunBattery screens the candidates, then draws B null statistics for every
// evaluable one. Candidates that cannot support a null model are returned as
// skip artifacts instead of failing the whole pass.
func (nb *NullBattery) RunBattery(ctx context.Context, req ports.BatteryRequest) (*ports.BatteryResult, error) {
	if req.Signal == nil {
		return nil, fmt.Errorf("%w: battery request has no signal", core.ErrConfigInvalid)
	}
	if req.B < 1 {
		return nil, fmt.Errorf("%w: b must be >= 1, got %d", core.ErrConfigInvalid, req.B)
	}
	if _, err := nullmodel.ParseMode(string(req.Mode)); err != nil {
		return nil, err
	}

	evaluable := make([]motif.Candidate, 0, len(req.Candidates))
	skipped := make([]*run.SkippedCandidateArtifact, 0)
	for _, cand := range req.Candidates {
		if art := nb.screen(req, cand); art != nil {
			skipped = append(skipped, art)
			continue
		}
		evaluable = append(evaluable, cand)
	}

	sets := make([]*nullmodel.SampleSet, len(evaluable))
	if len(evaluable) == 0 {
		return &ports.BatteryResult{Sets: sets, Skipped: skipped}, nil
	}

	numWorkers := req.Workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(evaluable) {
		numWorkers = len(evaluable)
	}

	workChan := make(chan int, len(evaluable))
	resultChan := make(chan batteryOutcome, len(evaluable))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nb.sampleWorker(ctx, req, evaluable, workChan, resultChan)
		}()
	}

	// Send work
	go func() {
		for i := range evaluable {
			workChan <- i
		}
		close(workChan)
	}()

	// Collect results
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var firstErr error
	for outcome := range resultChan {
		if outcome.err != nil {
			if firstErr == nil {
				firstErr = outcome.err
			}
			continue
		}
		sets[outcome.index] = outcome.set
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return &ports.BatteryResult{Sets: sets, Skipped: skipped}, nil
}

// screen checks whether a candidate's region can support a null model.
// Returns a skip artifact for ineligible candidates, nil for evaluable ones.
func (nb *NullBattery) screen(req ports.BatteryRequest, cand motif.Candidate) *run.SkippedCandidateArtifact {
	regionLen := cand.Region.Clamp(req.Signal.Len()).Len()

	required := req.MinRegionLen
	if 2*cand.Size > required {
		required = 2 * cand.Size
	}
	if regionLen < required {
		art := run.NewSkippedCandidateArtifact(req.RunID, cand.Label, run.WarningShortRegion,
			fmt.Sprintf("region has %d samples, null model needs %d", regionLen, required))
		art.Counts["region_len"] = regionLen
		art.Counts["required"] = required
		return art
	}

	m := req.Signal.RegionMoments(cand.Region)
	if m.StdDev == 0 {
		art := run.NewSkippedCandidateArtifact(req.RunID, cand.Label, run.WarningZeroVariance,
			"region is constant, nothing to permute")
		art.Counts["region_len"] = regionLen
		return art
	}

	return nil
}

// sampleWorker draws null sample sets in a goroutine
func (nb *NullBattery) sampleWorker(ctx context.Context, req ports.BatteryRequest, candidates []motif.Candidate,
	workChan <-chan int, resultChan chan<- batteryOutcome) {

	for index := range workChan {
		select {
		case <-ctx.Done():
			return
		default:
			set, err := nb.sampleOne(ctx, req, candidates[index])
			resultChan <- batteryOutcome{index: index, set: set, err: err}
		}
	}
}

// sampleOne draws the full null distribution for a single candidate
func (nb *NullBattery) sampleOne(ctx context.Context, req ports.BatteryRequest, cand motif.Candidate) (*nullmodel.SampleSet, error) {
	stream, err := nb.rngPort.Stream(ctx, string(req.RunID), req.Stage, string(cand.Label), req.Seed)
	if err != nil {
		return nil, fmt.Errorf("derive stream for %s: %w", cand.Label, err)
	}

	region := req.Signal.Slice(cand.Region)
	moments := signal.MomentsOf(region)
	centerOffset := cand.Center - cand.Region.Clamp(req.Signal.Len()).Start

	values := make([]float64, req.B)

	switch req.Mode {
	case nullmodel.ModePermutation:
		// Shuffling the region leaves its moments unchanged, so the observed
		// moments are reused for every draw.
		scratch := make([]float64, len(region))
		for b := 0; b < req.B; b++ {
			copy(scratch, region)

			// Fisher-Yates shuffle
			for i := len(scratch) - 1; i > 0; i-- {
				j := stream.Intn(i + 1)
				scratch[i], scratch[j] = scratch[j], scratch[i]
			}

			values[b] = signal.WindowStat(scratch, centerOffset, cand.Size, moments)
		}

	case nullmodel.ModeSurrogate:
		// Gaussian surrogates with the region's marginal moments, drawn by
		// inverse transform so the seeded stream fully determines the draw.
		dist := distuv.Normal{Mu: moments.Mean, Sigma: moments.StdDev}
		surrogate := make([]float64, len(region))
		for b := 0; b < req.B; b++ {
			for i := range surrogate {
				u := stream.Float64()
				for u == 0 {
					u = stream.Float64()
				}
				surrogate[i] = dist.Quantile(u)
			}

			sm := signal.MomentsOf(surrogate)
			if sm.StdDev == 0 {
				sm = moments
			}
			values[b] = signal.WindowStat(surrogate, centerOffset, cand.Size, sm)
		}
	}

	return nullmodel.NewSampleSet(cand.Label, req.Mode, req.Seed, values)
}
