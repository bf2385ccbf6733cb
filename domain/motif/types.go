package motif

import (
	"fmt"
	"math"
	"sort"

	"gomotif/domain/core"
	"gomotif/domain/signal"
)

// Label identifies a candidate motif. Labels are assigned by the discovery
// step and must be comparable across reruns: the same label always refers
// to the same size/center definition.
type Label string

// String returns the string representation
func (l Label) String() string { return string(l) }

// LabelFor builds the canonical label for a (center, size) pair. Zero-padded
// so lexical order follows signal position.
func LabelFor(center, size int) Label {
	return Label(fmt.Sprintf("m%05d_w%03d", center, size))
}

// Candidate is one putative motif instance proposed by discovery.
//
// Invariants:
//   - a candidate is immutable once handed to the engine; evaluation
//     returns a copy with PValue/Selected populated
//   - PValue and Selected are written exactly once, by the significance
//     evaluator; Evaluated guards against double writes
//   - Region is the stretch of signal the candidate was drawn from and
//     the context for its null sampling
type Candidate struct {
	Label     Label         `json:"label"`
	Size      int           `json:"size"`
	Stat      float64       `json:"stat"`
	Center    int           `json:"center"`
	Region    signal.Region `json:"region"`
	PValue    float64       `json:"pval"`
	Selected  bool          `json:"selected"`
	Evaluated bool          `json:"evaluated"`
}

// NewCandidate validates and constructs an unevaluated candidate.
func NewCandidate(label Label, size, center int, stat float64, region signal.Region) (Candidate, error) {
	c := Candidate{
		Label:  label,
		Size:   size,
		Stat:   stat,
		Center: center,
		Region: region,
	}
	if err := validateCandidate(c); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// MustNewCandidate constructs a candidate and panics on invalid input. Test helper.
func MustNewCandidate(label Label, size, center int, stat float64, region signal.Region) Candidate {
	c, err := NewCandidate(label, size, center, stat, region)
	if err != nil {
		panic(err)
	}
	return c
}

func validateCandidate(c Candidate) error {
	if c.Label == "" {
		return fmt.Errorf("%w: empty label", core.ErrInvalidCandidate)
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: size %d for %s", core.ErrInvalidCandidate, c.Size, c.Label)
	}
	if math.IsNaN(c.Stat) || math.IsInf(c.Stat, 0) {
		return fmt.Errorf("%w: non-finite statistic for %s", core.ErrInvalidCandidate, c.Label)
	}
	if c.Region.Len() > 0 && !c.Region.Contains(c.Center) {
		return fmt.Errorf("%w: center %d outside region [%d,%d) for %s",
			core.ErrInvalidCandidate, c.Center, c.Region.Start, c.Region.End, c.Label)
	}
	return nil
}

// WithEvaluation returns a copy with the significance outcome written.
// A second write is a programming defect.
func (c Candidate) WithEvaluation(pValue float64, selected bool) (Candidate, error) {
	if c.Evaluated {
		return Candidate{}, fmt.Errorf("candidate %s already evaluated", c.Label)
	}
	out := c
	out.PValue = pValue
	out.Selected = selected
	out.Evaluated = true
	return out, nil
}

// Row is the flat external representation of a candidate, matching the
// table exchanged with the discovery collaborator.
type Row struct {
	Label    string  `json:"label"`
	Size     int     `json:"size"`
	Stat     float64 `json:"stat"`
	Center   int     `json:"center"`
	PValue   float64 `json:"pval"`
	Selected bool    `json:"selected"`
}

// ToRow converts the candidate to its external row form.
func (c Candidate) ToRow() Row {
	return Row{
		Label:    c.Label.String(),
		Size:     c.Size,
		Stat:     c.Stat,
		Center:   c.Center,
		PValue:   c.PValue,
		Selected: c.Selected,
	}
}

// Table is an ordered set of candidates for one run.
type Table struct {
	RunID      core.RunID  `json:"run_id"`
	Candidates []Candidate `json:"candidates"`
}

// Labels returns all candidate labels in table order.
func (t Table) Labels() []Label {
	out := make([]Label, len(t.Candidates))
	for i, c := range t.Candidates {
		out[i] = c.Label
	}
	return out
}

// SelectedLabels returns the sorted labels of selected candidates.
func (t Table) SelectedLabels() []Label {
	var out []Label
	for _, c := range t.Candidates {
		if c.Selected {
			out = append(out, c.Label)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ByLabel returns the candidate with the given label.
func (t Table) ByLabel(label Label) (Candidate, bool) {
	for _, c := range t.Candidates {
		if c.Label == label {
			return c, true
		}
	}
	return Candidate{}, false
}

// Rows converts the table to its external row form.
func (t Table) Rows() []Row {
	out := make([]Row, len(t.Candidates))
	for i, c := range t.Candidates {
		out[i] = c.ToRow()
	}
	return out
}

// RankedLabels returns labels ordered by statistic, descending. Ties break
// by label so the ordering is deterministic.
func (t Table) RankedLabels() []Label {
	cands := make([]Candidate, len(t.Candidates))
	copy(cands, t.Candidates)
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Stat != cands[j].Stat {
			return cands[i].Stat > cands[j].Stat
		}
		return cands[i].Label < cands[j].Label
	})
	out := make([]Label, len(cands))
	for i, c := range cands {
		out[i] = c.Label
	}
	return out
}
