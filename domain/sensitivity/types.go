package sensitivity

import (
	"fmt"
	"sort"

	"gomotif/domain/core"
	"gomotif/domain/motif"
)

// Setting is one detector threshold percentile in a sensitivity sweep.
type Setting int

// DefaultSettings is the canonical sweep: detection thresholds at the 85th,
// 90th and 95th percentile of the window statistic.
var DefaultSettings = []Setting{85, 90, 95}

func (s Setting) String() string { return fmt.Sprintf("p%d", int(s)) }

// Validate rejects settings outside the percentile range.
func (s Setting) Validate() error {
	if s <= 0 || s >= 100 {
		return fmt.Errorf("%w: threshold percentile must be in (0,100), got %d", core.ErrConfigInvalid, int(s))
	}
	return nil
}

// Status marks whether a label appeared at all under a given setting.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Row is one (setting, label) cell of the sensitivity table. For absent
// cells the numeric fields are zero and Status is StatusAbsent; selection
// state must not be inferred from zeros.
type Row struct {
	Setting  Setting     `json:"setting"`
	Label    motif.Label `json:"label"`
	Stat     float64     `json:"stat"`
	PValue   float64     `json:"pval"`
	Selected bool        `json:"selected"`
	Status   Status      `json:"status"`
}

// Table covers the full cross of settings and labels that were selected
// under at least one setting. Every (setting, label) cell in that cross is
// materialized, so downstream readers never have to guess at missing rows.
type Table struct {
	SweepID  core.SweepID `json:"sweep_id"`
	Settings []Setting    `json:"settings"`
	Rows     []Row        `json:"rows"`
}

// SettingResult is the per-setting input to aggregation: every evaluated
// candidate at that setting, selected or not.
type SettingResult struct {
	Setting    Setting
	Candidates []motif.Candidate
}

// BuildTable aggregates per-setting results into the cross table. The label
// universe is the union of labels selected under any setting; labels never
// selected anywhere are excluded. A label that was evaluated but unselected
// at a setting appears as a present unselected row; a label never evaluated
// at that setting appears as an absent row.
func BuildTable(sweepID core.SweepID, results []SettingResult) (*Table, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no setting results to aggregate", core.ErrConfigInvalid)
	}

	seen := make(map[Setting]bool, len(results))
	settings := make([]Setting, 0, len(results))
	for _, r := range results {
		if err := r.Setting.Validate(); err != nil {
			return nil, err
		}
		if seen[r.Setting] {
			return nil, fmt.Errorf("%w: duplicate setting %s", core.ErrConfigInvalid, r.Setting)
		}
		seen[r.Setting] = true
		settings = append(settings, r.Setting)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i] < settings[j] })

	universe := make(map[motif.Label]struct{})
	for _, r := range results {
		for _, c := range r.Candidates {
			if c.Selected {
				universe[c.Label] = struct{}{}
			}
		}
	}
	labels := make([]motif.Label, 0, len(universe))
	for l := range universe {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	byKey := make(map[Setting]map[motif.Label]motif.Candidate, len(results))
	for _, r := range results {
		m := make(map[motif.Label]motif.Candidate, len(r.Candidates))
		for _, c := range r.Candidates {
			m[c.Label] = c
		}
		byKey[r.Setting] = m
	}

	rows := make([]Row, 0, len(settings)*len(labels))
	for _, s := range settings {
		for _, l := range labels {
			if c, ok := byKey[s][l]; ok {
				rows = append(rows, Row{
					Setting:  s,
					Label:    l,
					Stat:     c.Stat,
					PValue:   c.PValue,
					Selected: c.Selected,
					Status:   StatusPresent,
				})
			} else {
				rows = append(rows, Row{Setting: s, Label: l, Status: StatusAbsent})
			}
		}
	}

	return &Table{SweepID: sweepID, Settings: settings, Rows: rows}, nil
}

// Labels returns the table's label universe in sorted order.
func (t *Table) Labels() []motif.Label {
	seen := make(map[motif.Label]struct{})
	out := make([]motif.Label, 0)
	for _, r := range t.Rows {
		if _, ok := seen[r.Label]; !ok {
			seen[r.Label] = struct{}{}
			out = append(out, r.Label)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RowsFor returns the rows for one setting, in label order.
func (t *Table) RowsFor(s Setting) []Row {
	out := make([]Row, 0)
	for _, r := range t.Rows {
		if r.Setting == s {
			out = append(out, r)
		}
	}
	return out
}

// RobustLabels returns labels selected under every setting in the table.
func (t *Table) RobustLabels() []motif.Label {
	count := make(map[motif.Label]int)
	for _, r := range t.Rows {
		if r.Status == StatusPresent && r.Selected {
			count[r.Label]++
		}
	}
	out := make([]motif.Label, 0)
	for l, n := range count {
		if n == len(t.Settings) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
