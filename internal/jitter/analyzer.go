package jitter

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/domain/stability"
	"gomotif/internal/significance"
	"gomotif/ports"
)

// stageName prefixes every RNG stream drawn for jitter reruns so they
// never collide with the baseline null battery or injection trials.
const stageName = "stability"

// Analyzer reruns the detection and selection pipeline under K independent
// jitter seeds and reports how stable the selected set is: pairwise
// overlaps, consensus groups, rank concordance against the unjittered
// baseline, and per-label selection frequency.
type Analyzer struct {
	detector ports.DetectorPort
	battery  ports.NullBatteryPort
	rng      ports.RNGPort
}

// NewAnalyzer creates a stability analyzer.
func NewAnalyzer(detector ports.DetectorPort, battery ports.NullBatteryPort, rngPort ports.RNGPort) *Analyzer {
	return &Analyzer{detector: detector, battery: battery, rng: rngPort}
}

// Request carries one stability analysis. Baseline holds the evaluated
// candidates of the unjittered pass; rank concordance and selection
// frequency are computed against it.
type Request struct {
	RunID    core.RunID
	Signal   *signal.Signal
	Baseline []motif.Candidate
	Config   run.Config
}

type rerunOutcome struct {
	index   int
	ranking []motif.Label
	err     error
}

// Analyze runs K jitter reruns and assembles the stability report. Reruns
// run concurrently under a bounded semaphore; each rerun owns its own RNG
// stream and writes to its own result slot.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*stability.Report, error) {
	if req.Signal == nil || req.Signal.Len() == 0 {
		return nil, core.ErrEmptySignal
	}
	cfg := req.Config.Stability
	if cfg.K < 2 {
		return nil, fmt.Errorf("%w: stability needs at least 2 jitter seeds, got %d", core.ErrConfigInvalid, cfg.K)
	}
	if cfg.JitterScale <= 0 {
		return nil, fmt.Errorf("%w: jitter scale must be positive, got %g", core.ErrConfigInvalid, cfg.JitterScale)
	}

	evaluator, err := significance.NewEvaluator(req.Config.Alpha)
	if err != nil {
		return nil, err
	}

	outcomes := make([]rerunOutcome, cfg.K)

	workers := req.Config.Workers
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for k := 0; k < cfg.K; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[k] = rerunOutcome{index: k, err: err}
				return
			}
			defer sem.Release(1)
			ranking, err := a.runRerun(ctx, req, evaluator, k)
			outcomes[k] = rerunOutcome{index: k, ranking: ranking, err: err}
		}(k)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, out := range outcomes {
		if out.err != nil {
			return nil, fmt.Errorf("jitter rerun %d failed: %w", out.index, out.err)
		}
	}

	selections := make([][]motif.Label, cfg.K)
	for k, out := range outcomes {
		selections[k] = stability.SortedLabels(out.ranking)
	}

	matrix, err := stability.NewMatrix(req.RunID, selections)
	if err != nil {
		return nil, err
	}

	groups := consensusGroups(selections, cfg)

	baselineRanking := rankSelected(req.Baseline)
	agreements := make([]float64, cfg.K)
	for k, out := range outcomes {
		agreements[k] = stability.RankAgreement(baselineRanking, out.ranking)
	}

	return &stability.Report{
		RunID:              req.RunID,
		JitterScale:        cfg.JitterScale,
		Matrix:             matrix,
		Groups:             groups,
		Fragmentation:      float64(len(groups)) / float64(cfg.K),
		RankConcordance:    concordance(agreements),
		SelectionFrequency: selectionFrequency(baselineRanking, selections, cfg),
	}, nil
}

// runRerun perturbs the signal with one jitter seed, runs detection,
// null sampling, and evaluation, and returns the selected labels ranked
// by statistic descending.
func (a *Analyzer) runRerun(ctx context.Context, req Request, evaluator *significance.Evaluator, k int) ([]motif.Label, error) {
	cfg := req.Config

	stream, err := a.rng.Stream(ctx, string(req.RunID), stageName, fmt.Sprintf("jitter:%d", k), cfg.Seed)
	if err != nil {
		return nil, err
	}

	perturbed, err := signal.New(req.Signal.Key, perturb(stream, req.Signal.Values, cfg.Stability.JitterScale))
	if err != nil {
		return nil, err
	}

	cands, err := a.detector.Detect(ctx, perturbed, cfg.ThresholdPercentile)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}

	batRes, err := a.battery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        req.RunID,
		Stage:        fmt.Sprintf("%s:%d", stageName, k),
		Signal:       perturbed,
		Candidates:   cands,
		Mode:         cfg.Mode,
		B:            cfg.B,
		MinRegionLen: cfg.MinRegionLen,
		Workers:      1,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	sets := make(map[motif.Label]*nullmodel.SampleSet, len(batRes.Sets))
	for _, set := range batRes.Sets {
		sets[set.Label] = set
	}

	evaluated := make([]motif.Candidate, 0, len(cands))
	for _, cand := range cands {
		set, ok := sets[cand.Label]
		if !ok {
			continue
		}
		out, _, err := evaluator.Evaluate(cand, set)
		if err != nil {
			return nil, err
		}
		evaluated = append(evaluated, out)
	}
	return rankSelected(evaluated), nil
}

// perturb scales every sample by an independent factor drawn from
// N(1, scale) on the rerun's own stream.
func perturb(stream *rand.Rand, values []float64, scale float64) []float64 {
	dist := distuv.Normal{Mu: 1.0, Sigma: scale}
	out := make([]float64, len(values))
	for i, v := range values {
		u := stream.Float64()
		for u == 0 {
			u = stream.Float64()
		}
		out[i] = v * dist.Quantile(u)
	}
	return out
}

// rankSelected returns the labels of selected candidates ordered by
// statistic descending, ties broken by label.
func rankSelected(cands []motif.Candidate) []motif.Label {
	selected := make([]motif.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Selected {
			selected = append(selected, c)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Stat != selected[j].Stat {
			return selected[i].Stat > selected[j].Stat
		}
		return selected[i].Label < selected[j].Label
	})
	labels := make([]motif.Label, len(selected))
	for i, c := range selected {
		labels[i] = c.Label
	}
	return labels
}

// consensusGroups partitions the K selections into components of the
// Jaccard-threshold graph. A group is consensus-stable when it covers at
// least ceil(fraction×K) member sets; its labels are the ones every
// member agrees on.
func consensusGroups(selections [][]motif.Label, cfg run.StabilityConfig) []stability.ConsensusGroup {
	k := len(selections)

	parent := make([]int, k)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if stability.Jaccard(selections[i], selections[j]) >= cfg.GroupingThreshold {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[ri] = rj
				}
			}
		}
	}

	memberSets := make(map[int][]int)
	for i := 0; i < k; i++ {
		root := find(i)
		memberSets[root] = append(memberSets[root], i)
	}

	quorum := int(math.Ceil(cfg.ConsensusFraction * float64(k)))
	groups := make([]stability.ConsensusGroup, 0, len(memberSets))
	for _, members := range memberSets {
		sets := make([][]motif.Label, len(members))
		for i, m := range members {
			sets[i] = selections[m]
		}
		groups = append(groups, stability.ConsensusGroup{
			MemberSeeds:         members,
			NMemberSets:         len(members),
			Labels:              intersectLabels(sets),
			MeanPairwiseJaccard: meanPairwiseJaccard(sets),
			Consensus:           len(members) >= quorum,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].MemberSeeds[0] < groups[j].MemberSeeds[0] })
	for i := range groups {
		groups[i].ConsensusID = fmt.Sprintf("g%02d", i)
	}
	return groups
}

// intersectLabels returns the labels present in every set, sorted.
func intersectLabels(sets [][]motif.Label) []motif.Label {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[motif.Label]int)
	for _, set := range sets {
		for _, l := range set {
			counts[l]++
		}
	}
	shared := make([]motif.Label, 0, len(counts))
	for l, c := range counts {
		if c == len(sets) {
			shared = append(shared, l)
		}
	}
	return stability.SortedLabels(shared)
}

// meanPairwiseJaccard averages overlaps over member pairs; a singleton
// group is maximally coherent.
func meanPairwiseJaccard(sets [][]motif.Label) float64 {
	if len(sets) < 2 {
		return 1.0
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += stability.Jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// concordance summarizes per-rerun rank agreements.
func concordance(agreements []float64) stability.Concordance {
	min, max := agreements[0], agreements[0]
	for _, a := range agreements[1:] {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
	}
	return stability.Concordance{
		Mean: stat.Mean(agreements, nil),
		Std:  stat.StdDev(agreements, nil),
		Min:  min,
		Max:  max,
		K:    len(agreements),
	}
}

// selectionFrequency reports, for every label selected in the baseline or
// any rerun, the fraction of reruns that selected it. Labels below the
// flag threshold are marked unstable.
func selectionFrequency(baseline []motif.Label, selections [][]motif.Label, cfg run.StabilityConfig) []stability.LabelFrequency {
	k := len(selections)
	counts := make(map[motif.Label]int)
	for _, l := range baseline {
		counts[l] = 0
	}
	for _, set := range selections {
		for _, l := range set {
			counts[l]++
		}
	}

	labels := make([]motif.Label, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	out := make([]stability.LabelFrequency, len(labels))
	for i, l := range labels {
		freq := float64(counts[l]) / float64(k)
		out[i] = stability.LabelFrequency{Label: l, Frequency: freq, Unstable: freq < cfg.UnstableBelow}
	}
	return out
}
