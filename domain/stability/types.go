package stability

import (
	"fmt"
	"sort"

	"gomotif/domain/core"
	"gomotif/domain/motif"
)

// Jaccard computes |A ∩ B| / |A ∪ B| over two label sets. Two empty
// selections are maximally stable, so both-empty is defined as 1.0.
func Jaccard(a, b []motif.Label) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	setA := make(map[motif.Label]struct{}, len(a))
	for _, l := range a {
		setA[l] = struct{}{}
	}
	setB := make(map[motif.Label]struct{}, len(b))
	for _, l := range b {
		setB[l] = struct{}{}
	}

	inter := 0
	for l := range setA {
		if _, ok := setB[l]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// Pair is one entry of the pairwise overlap artifact, keyed by the two
// jitter seed indices.
type Pair struct {
	SeedI   int     `json:"seed_i"`
	SeedJ   int     `json:"seed_j"`
	Jaccard float64 `json:"jaccard"`
}

// Matrix is the symmetric K×K overlap matrix with unit diagonal. Only the
// upper triangle is stored; At answers for the full matrix.
type Matrix struct {
	RunID core.RunID `json:"run_id"`
	K     int        `json:"k"`
	Pairs []Pair     `json:"pairs"`
}

// NewMatrix builds the matrix from the selected-label sets of K jitter
// reruns, in seed order.
func NewMatrix(runID core.RunID, selections [][]motif.Label) (*Matrix, error) {
	k := len(selections)
	if k < 2 {
		return nil, fmt.Errorf("%w: stability needs at least 2 jitter seeds, got %d", core.ErrConfigInvalid, k)
	}

	pairs := make([]Pair, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			pairs = append(pairs, Pair{
				SeedI:   i,
				SeedJ:   j,
				Jaccard: Jaccard(selections[i], selections[j]),
			})
		}
	}

	return &Matrix{RunID: runID, K: k, Pairs: pairs}, nil
}

// At returns the overlap for (i, j); the diagonal is exactly 1.0 and the
// matrix is symmetric.
func (m *Matrix) At(i, j int) (float64, error) {
	if i < 0 || i >= m.K || j < 0 || j >= m.K {
		return 0, fmt.Errorf("seed index out of range: (%d,%d) with k=%d", i, j, m.K)
	}
	if i == j {
		return 1.0, nil
	}
	if i > j {
		i, j = j, i
	}
	for _, p := range m.Pairs {
		if p.SeedI == i && p.SeedJ == j {
			return p.Jaccard, nil
		}
	}
	return 0, fmt.Errorf("pair (%d,%d) not materialized", i, j)
}

// MeanOverlap averages the upper-triangle overlaps.
func (m *Matrix) MeanOverlap() float64 {
	if len(m.Pairs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range m.Pairs {
		sum += p.Jaccard
	}
	return sum / float64(len(m.Pairs))
}

// ConsensusGroup is a component of the Jaccard-threshold graph over the
// jitter selections: member sets overlap pairwise at or above the grouping
// threshold.
type ConsensusGroup struct {
	ConsensusID         string        `json:"consensus_id"`
	MemberSeeds         []int         `json:"member_seeds"`
	NMemberSets         int           `json:"n_member_sets"`
	Labels              []motif.Label `json:"labels"`
	MeanPairwiseJaccard float64       `json:"mean_pairwise_jaccard"`
	Consensus           bool          `json:"consensus"`
}

// Report is the full stability artifact for one run.
type Report struct {
	RunID              core.RunID       `json:"run_id"`
	JitterScale        float64          `json:"jitter_scale"`
	Matrix             *Matrix          `json:"matrix"`
	Groups             []ConsensusGroup `json:"groups"`
	Fragmentation      float64          `json:"fragmentation"`
	RankConcordance    Concordance      `json:"rank_concordance"`
	SelectionFrequency []LabelFrequency `json:"selection_frequency"`
}

// LabelFrequency is how often a label was selected across jitter reruns.
// Labels below the flag threshold are marked unstable.
type LabelFrequency struct {
	Label     motif.Label `json:"label"`
	Frequency float64     `json:"frequency"`
	Unstable  bool        `json:"unstable"`
}

// Concordance summarizes how often jitter reruns preserved the baseline
// candidate ranking.
type Concordance struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	K    int     `json:"k"`
}

// RankAgreement computes the fraction of positions at which two rankings
// list the same label. Rankings of different lengths compare over the
// shorter prefix, with the length difference counted as disagreement.
func RankAgreement(baseline, rerun []motif.Label) float64 {
	if len(baseline) == 0 && len(rerun) == 0 {
		return 1.0
	}
	longer := len(baseline)
	if len(rerun) > longer {
		longer = len(rerun)
	}
	shorter := len(baseline)
	if len(rerun) < shorter {
		shorter = len(rerun)
	}

	same := 0
	for i := 0; i < shorter; i++ {
		if baseline[i] == rerun[i] {
			same++
		}
	}
	return float64(same) / float64(longer)
}

// SortedLabels returns a sorted copy, the canonical form for set artifacts.
func SortedLabels(labels []motif.Label) []motif.Label {
	out := make([]motif.Label, len(labels))
	copy(out, labels)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
