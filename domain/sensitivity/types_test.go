package sensitivity

import (
	"testing"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/signal"
)

func evaluated(t *testing.T, label string, stat, pval float64, selected bool) motif.Candidate {
	t.Helper()
	c := motif.MustNewCandidate(motif.Label(label), 16, 500, stat, signal.Region{Start: 400, End: 600})
	out, err := c.WithEvaluation(pval, selected)
	if err != nil {
		t.Fatalf("WithEvaluation failed: %v", err)
	}
	return out
}

func TestBuildTable_FullCross(t *testing.T) {
	results := []SettingResult{
		{Setting: 90, Candidates: []motif.Candidate{
			evaluated(t, "m00400_w016", 8.0, 0.01, true),
			evaluated(t, "m00800_w016", 3.0, 0.20, false),
		}},
		{Setting: 95, Candidates: []motif.Candidate{
			evaluated(t, "m00800_w016", 3.2, 0.02, true),
		}},
	}

	table, err := BuildTable(core.SweepID("sweep-1"), results)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	// universe is the two ever-selected labels, crossed with two settings
	if len(table.Rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(table.Rows))
	}
	if got := table.Labels(); len(got) != 2 {
		t.Fatalf("Expected 2 labels in universe, got %v", got)
	}

	find := func(s Setting, label string) Row {
		for _, r := range table.Rows {
			if r.Setting == s && r.Label == motif.Label(label) {
				return r
			}
		}
		t.Fatalf("Row (%s, %s) missing", s, label)
		return Row{}
	}

	if r := find(90, "m00400_w016"); r.Status != StatusPresent || !r.Selected {
		t.Errorf("Expected present selected row, got %+v", r)
	}
	if r := find(90, "m00800_w016"); r.Status != StatusPresent || r.Selected {
		t.Errorf("Evaluated-but-unselected must stay present, got %+v", r)
	}
	if r := find(95, "m00400_w016"); r.Status != StatusAbsent {
		t.Errorf("Never-evaluated label must be marked absent, got %+v", r)
	}
	if r := find(95, "m00400_w016"); r.Stat != 0 || r.PValue != 0 || r.Selected {
		t.Errorf("Absent rows must carry zeroed fields, got %+v", r)
	}
}

func TestBuildTable_NeverSelectedExcluded(t *testing.T) {
	results := []SettingResult{
		{Setting: 90, Candidates: []motif.Candidate{
			evaluated(t, "m00400_w016", 8.0, 0.01, true),
			evaluated(t, "m00800_w016", 1.0, 0.90, false),
		}},
		{Setting: 95, Candidates: []motif.Candidate{
			evaluated(t, "m00800_w016", 1.1, 0.85, false),
		}},
	}

	table, err := BuildTable(core.SweepID("sweep-1"), results)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}
	for _, r := range table.Rows {
		if r.Label == motif.Label("m00800_w016") {
			t.Errorf("Label never selected anywhere must not enter the universe")
		}
	}
	if len(table.Rows) != 2 {
		t.Errorf("Expected 2 rows (one label, two settings), got %d", len(table.Rows))
	}
}

func TestBuildTable_RobustLabels(t *testing.T) {
	results := []SettingResult{
		{Setting: 85, Candidates: []motif.Candidate{
			evaluated(t, "m00400_w016", 8.0, 0.01, true),
			evaluated(t, "m00800_w016", 5.0, 0.03, true),
		}},
		{Setting: 95, Candidates: []motif.Candidate{
			evaluated(t, "m00400_w016", 8.1, 0.01, true),
			evaluated(t, "m00800_w016", 4.8, 0.30, false),
		}},
	}

	table, err := BuildTable(core.SweepID("sweep-1"), results)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}
	robust := table.RobustLabels()
	if len(robust) != 1 || robust[0] != motif.Label("m00400_w016") {
		t.Errorf("Expected only the everywhere-selected label, got %v", robust)
	}
}

func TestBuildTable_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		results []SettingResult
	}{
		{"empty input", nil},
		{"duplicate setting", []SettingResult{{Setting: 90}, {Setting: 90}}},
		{"setting out of range", []SettingResult{{Setting: 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildTable(core.SweepID("sweep-1"), tt.results); !core.IsConfigError(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

func TestRowsFor_SettingOrder(t *testing.T) {
	results := []SettingResult{
		{Setting: 95, Candidates: []motif.Candidate{evaluated(t, "m00400_w016", 8.0, 0.01, true)}},
		{Setting: 85, Candidates: []motif.Candidate{evaluated(t, "m00400_w016", 7.0, 0.02, true)}},
	}

	table, err := BuildTable(core.SweepID("sweep-1"), results)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}
	if table.Settings[0] != 85 || table.Settings[1] != 95 {
		t.Errorf("Settings must be sorted ascending, got %v", table.Settings)
	}
	if rows := table.RowsFor(85); len(rows) != 1 || rows[0].Stat != 7.0 {
		t.Errorf("RowsFor(85) = %+v", rows)
	}
}
