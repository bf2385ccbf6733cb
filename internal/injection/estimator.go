package injection

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/stat/distuv"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/power"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/internal/significance"
	"gomotif/ports"
)

// stageName prefixes every RNG stream drawn for injection trials so they
// never collide with the baseline null battery or jitter reruns.
const stageName = "power"

// Estimator measures how reliably the detection and significance pipeline
// recovers motifs implanted into synthetic backgrounds. Each grid cell
// (size, sigma) is estimated from an independent set of trials.
type Estimator struct {
	detector ports.DetectorPort
	battery  ports.NullBatteryPort
	rng      ports.RNGPort
}

// NewEstimator creates an injection power estimator.
func NewEstimator(detector ports.DetectorPort, battery ports.NullBatteryPort, rngPort ports.RNGPort) *Estimator {
	return &Estimator{detector: detector, battery: battery, rng: rngPort}
}

// Request carries everything one power estimation needs. Trial backgrounds
// share the observed signal's length and moments but none of its values.
type Request struct {
	RunID  core.RunID
	Signal *signal.Signal
	Config run.Config
}

type trialOutcome struct {
	index int
	trial power.Trial
	err   error
}

// Estimate runs the full injection grid and returns the power curve.
// Trials run concurrently under a bounded semaphore; each trial owns its
// own RNG stream and writes to its own result slot, so scheduling order
// never changes the outcome. A zero detection rate in a cell is a valid
// result and is reported like any other.
func (e *Estimator) Estimate(ctx context.Context, req Request) (*power.Curve, error) {
	if req.Signal == nil || req.Signal.Len() == 0 {
		return nil, core.ErrEmptySignal
	}
	grid := req.Config.Power
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if err := req.Config.Tolerance.Validate(); err != nil {
		return nil, err
	}

	n := req.Signal.Len()
	for _, size := range grid.Sizes {
		if n <= 2*size {
			return nil, fmt.Errorf("%w: injection size %d does not fit signal of length %d", core.ErrInvalidGrid, size, n)
		}
	}

	baseline := signal.MomentsOf(req.Signal.Values)
	if baseline.StdDev == 0 {
		return nil, fmt.Errorf("%w: zero-variance signal cannot seed injection backgrounds", core.ErrInsufficientData)
	}

	evaluator, err := significance.NewEvaluator(req.Config.Alpha)
	if err != nil {
		return nil, err
	}

	total := grid.Cells() * grid.Trials
	outcomes := make([]trialOutcome, total)

	workers := req.Config.Workers
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	slot := 0
	for _, size := range grid.Sizes {
		for _, sigma := range grid.Sigmas {
			for trial := 0; trial < grid.Trials; trial++ {
				wg.Add(1)
				go func(slot, size, trial int, sigma float64) {
					defer wg.Done()
					if err := sem.Acquire(ctx, 1); err != nil {
						outcomes[slot] = trialOutcome{index: slot, err: err}
						return
					}
					defer sem.Release(1)
					tr, err := e.runTrial(ctx, req, evaluator, baseline, size, sigma, trial)
					outcomes[slot] = trialOutcome{index: slot, trial: tr, err: err}
				}(slot, size, trial, sigma)
				slot++
			}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, out := range outcomes {
		if out.err != nil {
			return nil, fmt.Errorf("injection trial failed: %w", out.err)
		}
	}

	curve := &power.Curve{RunID: req.RunID, Cells: make([]power.Cell, 0, grid.Cells())}
	slot = 0
	for _, size := range grid.Sizes {
		for _, sigma := range grid.Sigmas {
			cell := power.Cell{Size: size, Sigma: sigma, Trials: grid.Trials}
			for trial := 0; trial < grid.Trials; trial++ {
				if outcomes[slot].trial.Detected {
					cell.Detected++
				}
				slot++
			}
			cell.DetectionRate = float64(cell.Detected) / float64(cell.Trials)
			curve.Cells = append(curve.Cells, cell)
		}
	}
	return curve, nil
}

// runTrial implants one motif into a fresh background and reports whether
// the pipeline recovered it. Recovery requires a selected candidate whose
// center and size match the injection site within the configured tolerance.
func (e *Estimator) runTrial(ctx context.Context, req Request, evaluator *significance.Evaluator, baseline signal.Moments, size int, sigma float64, trialIdx int) (power.Trial, error) {
	cfg := req.Config
	key := trialKey(size, sigma, trialIdx)
	out := power.Trial{Size: size, Sigma: sigma, Index: trialIdx}

	stream, err := e.rng.Stream(ctx, string(req.RunID), stageName, key, cfg.Seed)
	if err != nil {
		return out, err
	}

	n := req.Signal.Len()
	background := drawBackground(stream, baseline, n)
	center := size + stream.Intn(n-2*size)
	implant(background, center, size, sigma*baseline.StdDev)
	out.Center = center

	trialSig, err := signal.New(req.Signal.Key, background)
	if err != nil {
		return out, err
	}

	cands, err := e.detector.Detect(ctx, trialSig, cfg.ThresholdPercentile)
	if err != nil {
		return out, err
	}

	// Only candidates overlapping the injection site can count as a
	// recovery; per-candidate null streams are independent, so skipping
	// the rest does not change any p-value.
	var matching []motif.Candidate
	for _, cand := range cands {
		if cfg.Tolerance.Matches(center, size, cand.Center, cand.Size) {
			matching = append(matching, cand)
		}
	}
	if len(matching) == 0 {
		return out, nil
	}

	batRes, err := e.battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        req.RunID,
		Stage:        stageName + ":" + key,
		Signal:       trialSig,
		Candidates:   matching,
		Mode:         cfg.Mode,
		B:            cfg.B,
		MinRegionLen: cfg.MinRegionLen,
		Workers:      1,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return out, err
	}

	sets := make(map[motif.Label]*nullmodel.SampleSet, len(batRes.Sets))
	for _, set := range batRes.Sets {
		sets[set.Label] = set
	}
	for _, cand := range matching {
		set, ok := sets[cand.Label]
		if !ok {
			// screened out of the battery (short region, zero variance)
			continue
		}
		evaluated, _, err := evaluator.Evaluate(cand, set)
		if err != nil {
			return out, err
		}
		if evaluated.Selected {
			out.Detected = true
			break
		}
	}
	return out, nil
}

func trialKey(size int, sigma float64, trial int) string {
	return fmt.Sprintf("size:%d|sigma:%g|trial:%d", size, sigma, trial)
}

// drawBackground samples n values from a Gaussian with the baseline
// moments via inverse-transform draws on the trial's own stream.
func drawBackground(stream *rand.Rand, m signal.Moments, n int) []float64 {
	dist := distuv.Normal{Mu: m.Mean, Sigma: m.StdDev}
	values := make([]float64, n)
	for i := range values {
		u := stream.Float64()
		for u == 0 {
			u = stream.Float64()
		}
		values[i] = dist.Quantile(u)
	}
	return values
}

// implant adds a raised-cosine bump of the given size and amplitude
// centered at the chosen position.
func implant(values []float64, center, size int, amplitude float64) {
	half := size / 2
	start := center - half
	for i := 0; i < size; i++ {
		pos := start + i
		if pos < 0 || pos >= len(values) {
			continue
		}
		phase := float64(i) / float64(size)
		values[pos] += amplitude * 0.5 * (1 - math.Cos(2*math.Pi*phase))
	}
}
