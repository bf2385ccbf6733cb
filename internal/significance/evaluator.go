package significance

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
)

// Evaluator turns null sample sets into p-values and selection decisions.
//
// The p-value is the add-one empirical tail probability
//
//	p = (count(null >= observed) + 1) / (B + 1)
//
// which can never reach zero: the observed statistic is counted as one more
// draw from its own null. Selection is strict, p < alpha.
type Evaluator struct {
	alpha float64
}

// NewEvaluator creates an evaluator with the given selection level
func NewEvaluator(alpha float64) (*Evaluator, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("%w: alpha must be in (0,1), got %g", core.ErrConfigInvalid, alpha)
	}
	return &Evaluator{alpha: alpha}, nil
}

// Alpha returns the selection level
func (e *Evaluator) Alpha() float64 { return e.alpha }

// Evaluate consumes the sample set and scores one candidate. The set can be
// used exactly once; a second evaluation against the same draws would let a
// caller silently reuse the null, so Consume refuses it.
func (e *Evaluator) Evaluate(cand motif.Candidate, set *nullmodel.SampleSet) (motif.Candidate, *nullmodel.Summary, error) {
	if set == nil {
		return motif.Candidate{}, nil, fmt.Errorf("%w: no sample set for %s", core.ErrInsufficientData, cand.Label)
	}
	if set.Label != cand.Label {
		return motif.Candidate{}, nil, fmt.Errorf("sample set for %s offered to candidate %s", set.Label, cand.Label)
	}

	values, err := set.Consume()
	if err != nil {
		return motif.Candidate{}, nil, err
	}

	b := len(values)
	count := 0
	for _, v := range values {
		if v >= cand.Stat {
			count++
		}
	}
	pValue := float64(count+1) / float64(b+1)
	selected := pValue < e.alpha

	evaluated, err := cand.WithEvaluation(pValue, selected)
	if err != nil {
		return motif.Candidate{}, nil, err
	}

	summary, err := buildSummary(evaluated, values)
	if err != nil {
		return motif.Candidate{}, nil, err
	}

	return evaluated, summary, nil
}

// EvaluateAll scores candidates against their sample sets pairwise. Slices
// must be aligned: sets[i] belongs to candidates[i].
func (e *Evaluator) EvaluateAll(candidates []motif.Candidate, sets []*nullmodel.SampleSet) ([]motif.Candidate, []*nullmodel.Summary, error) {
	if len(candidates) != len(sets) {
		return nil, nil, fmt.Errorf("%d candidates but %d sample sets", len(candidates), len(sets))
	}

	evaluated := make([]motif.Candidate, len(candidates))
	summaries := make([]*nullmodel.Summary, len(candidates))
	for i := range candidates {
		cand, summary, err := e.Evaluate(candidates[i], sets[i])
		if err != nil {
			return nil, nil, err
		}
		evaluated[i] = cand
		summaries[i] = summary
	}

	return evaluated, summaries, nil
}

// buildSummary computes the null distribution quantiles reported alongside
// every evaluated candidate.
func buildSummary(cand motif.Candidate, values []float64) (*nullmodel.Summary, error) {
	summary := &nullmodel.Summary{
		CandidateID: cand.Label.String(),
		TObs:        cand.Stat,
		B:           len(values),
		PValue:      cand.PValue,
		Selected:    cand.Selected,
	}

	quantiles := []struct {
		pct  float64
		dest *float64
	}{
		{1, &summary.Null1Pct},
		{5, &summary.Null5Pct},
		{25, &summary.Null25Pct},
		{50, &summary.NullMedian},
		{75, &summary.Null75Pct},
		{95, &summary.Null95Pct},
		{99, &summary.Null99Pct},
	}
	for _, q := range quantiles {
		v, err := stats.Percentile(values, q.pct)
		if err != nil {
			return nil, fmt.Errorf("null quantile p%g for %s: %w", q.pct, cand.Label, err)
		}
		*q.dest = v
	}

	return summary, nil
}
