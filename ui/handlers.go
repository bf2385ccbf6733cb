package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/power"
	"gomotif/domain/run"
	"gomotif/domain/sensitivity"
	"gomotif/domain/stability"
	"gomotif/ports"
)

const timeLayout = "2006-01-02 15:04:05"

// runRow is the list representation of a run record.
type runRow struct {
	ID        string
	SignalKey string
	Status    string
	Created   string
	Completed string
	Error     string
}

func runRowOf(r *run.Run) runRow {
	row := runRow{
		ID:        r.ID.String(),
		SignalKey: r.SignalKey.String(),
		Status:    string(r.Status),
		Created:   r.CreatedAt.Time().Format(timeLayout),
		Error:     r.Error,
	}
	if !r.CompletedAt.IsZero() {
		row.Completed = r.CompletedAt.Time().Format(timeLayout)
	}
	return row
}

// sweepRow is the list representation of a sweep record.
type sweepRow struct {
	ID        string
	SignalKey string
	Status    string
	Settings  string
	Created   string
	Error     string
}

func sweepRowOf(s *run.Sweep) sweepRow {
	settings := make([]string, len(s.Settings))
	for i, v := range s.Settings {
		settings[i] = sensitivity.Setting(v).String()
	}
	return sweepRow{
		ID:        s.ID.String(),
		SignalKey: s.SignalKey.String(),
		Status:    string(s.Status),
		Settings:  strings.Join(settings, ", "),
		Created:   s.CreatedAt.Time().Format(timeLayout),
		Error:     s.Error,
	}
}

// handleIndex renders the console front page with recent runs and sweeps
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	runRows, err := a.listRunRows(r, 20)
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}
	sweepRows, err := a.listSweepRows(r, 10)
	if err != nil {
		http.Error(w, "Failed to load sweeps", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Title":  "gomotif",
		"Runs":   runRows,
		"Sweeps": sweepRows,
	}
	a.renderTemplate(w, "index.html", data)
}

// handleRunsFragment serves the runs table for HTMX polling
func (a *App) handleRunsFragment(w http.ResponseWriter, r *http.Request) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	rows, err := a.listRunRows(r, 20)
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}
	a.renderTemplate(w, "runs_table.html", map[string]interface{}{"Runs": rows})
}

// handleSweepsFragment serves the sweeps table for HTMX polling
func (a *App) handleSweepsFragment(w http.ResponseWriter, r *http.Request) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	rows, err := a.listSweepRows(r, 10)
	if err != nil {
		http.Error(w, "Failed to load sweeps", http.StatusInternalServerError)
		return
	}
	a.renderTemplate(w, "sweeps_table.html", map[string]interface{}{"Sweeps": rows})
}

func (a *App) listRunRows(r *http.Request, limit int) ([]runRow, error) {
	runs, err := a.runs.ListRuns(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	rows := make([]runRow, len(runs))
	for i, rec := range runs {
		rows[i] = runRowOf(rec)
	}
	return rows, nil
}

func (a *App) listSweepRows(r *http.Request, limit int) ([]sweepRow, error) {
	sweeps, err := a.sweeps.ListSweeps(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	rows := make([]sweepRow, len(sweeps))
	for i, rec := range sweeps {
		rows[i] = sweepRowOf(rec)
	}
	return rows, nil
}

// artifactRow is the list representation of a ledger artifact.
type artifactRow struct {
	ID      string
	Kind    string
	Created string
}

// handleRunDetail renders one run with its manifest, candidate table,
// power curve, stability report and markdown summary.
func (a *App) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	runID := core.RunID(chi.URLParam(r, "id"))

	rec, err := a.runs.GetRun(r.Context(), runID)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	artifacts, err := a.reader.ListArtifacts(r.Context(), ports.ArtifactFilters{RunID: &runID, Limit: 500})
	if err != nil {
		http.Error(w, "Failed to load artifacts", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Title":  "Run " + runID.String(),
		"Run":    runRowOf(rec),
		"Config": rec.Config,
	}

	rows := make([]artifactRow, 0, len(artifacts))
	for _, artifact := range artifacts {
		rows = append(rows, artifactRow{
			ID:      artifact.ID.String(),
			Kind:    string(artifact.Kind),
			Created: artifact.CreatedAt.Time().Format(timeLayout),
		})

		switch artifact.Kind {
		case core.ArtifactCandidateTable:
			if table, ok := candidateTableOf(artifact.Payload); ok {
				data["Candidates"] = table.Candidates
			}
		case core.ArtifactPowerCurve:
			if curve, ok := artifact.Payload.(*power.Curve); ok {
				data["PowerCells"] = curve.Cells
			}
		case core.ArtifactConsensusSummary:
			if report, ok := artifact.Payload.(*stability.Report); ok {
				data["Stability"] = report
			}
		case core.ArtifactRunSummary:
			if summary, ok := artifact.Payload.(*run.SummaryArtifact); ok {
				data["SummaryHTML"] = renderMarkdown(summary.Markdown)
			}
		}
	}
	data["Artifacts"] = rows

	// A manifest only exists once the pipeline finished its audit step
	if manifest, err := a.reader.GetRunManifest(r.Context(), runID); err == nil {
		data["Manifest"] = manifest
	}

	a.renderTemplate(w, "run_detail.html", data)
}

// candidateTableOf unwraps a candidate table payload, which arrives as a
// value from the database decoder and as a pointer from the pipeline.
func candidateTableOf(payload interface{}) (motif.Table, bool) {
	switch p := payload.(type) {
	case motif.Table:
		return p, true
	case *motif.Table:
		return *p, true
	}
	return motif.Table{}, false
}

// settingRow is one sweep setting with its derived run.
type settingRow struct {
	Setting string
	RunID   string
	Status  string
}

// sensitivityView is the cross table pivoted for rendering: one row per
// label, one cell per setting.
type sensitivityView struct {
	Settings []string
	Rows     []sensitivityRowView
	Robust   []string
}

type sensitivityRowView struct {
	Label string
	Cells []sensitivityCellView
}

type sensitivityCellView struct {
	Present  bool
	Selected bool
	Stat     float64
	PValue   float64
}

// handleSweepDetail renders one sweep with its per-setting runs and the
// aggregated sensitivity table.
func (a *App) handleSweepDetail(w http.ResponseWriter, r *http.Request) {
	sweepID := core.SweepID(chi.URLParam(r, "id"))

	rec, err := a.sweeps.GetSweep(r.Context(), sweepID)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.Error(w, "Sweep not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load sweep", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Title": "Sweep " + sweepID.String(),
		"Sweep": sweepRowOf(rec),
	}

	manifest, manifestErr := a.reader.GetSweepManifest(r.Context(), sweepID)
	if manifestErr == nil {
		data["Manifest"] = manifest
	}

	// Per-setting runs come from the manifest when it exists; before that,
	// run IDs follow the "<sweep>-<setting>" convention.
	settingRows := make([]settingRow, 0, len(rec.Settings))
	for _, setting := range rec.Settings {
		row := settingRow{
			Setting: sensitivity.Setting(setting).String(),
			RunID:   fmt.Sprintf("%s-%s", sweepID, sensitivity.Setting(setting)),
			Status:  string(run.StatusPending),
		}
		if manifest != nil {
			if id, ok := manifest.RunIDs[setting]; ok {
				row.RunID = id.String()
			}
		}
		if runRec, err := a.runs.GetRun(r.Context(), core.RunID(row.RunID)); err == nil {
			row.Status = string(runRec.Status)
		}
		settingRows = append(settingRows, row)
	}
	data["SettingRuns"] = settingRows

	if table := a.sensitivityTableOf(r, sweepID); table != nil {
		data["Sensitivity"] = pivotSensitivity(table)
	}

	a.renderTemplate(w, "sweep_detail.html", data)
}

// sensitivityTableOf loads the sweep's aggregated table from the ledger,
// returning nil while the sweep is still producing it.
func (a *App) sensitivityTableOf(r *http.Request, sweepID core.SweepID) *sensitivity.Table {
	kind := core.ArtifactSensitivityTable
	owner := core.RunID(sweepID)
	artifacts, err := a.reader.ListArtifacts(r.Context(), ports.ArtifactFilters{RunID: &owner, Kind: &kind, Limit: 1})
	if err != nil || len(artifacts) == 0 {
		return nil
	}
	table, ok := artifacts[0].Payload.(*sensitivity.Table)
	if !ok {
		return nil
	}
	return table
}

func pivotSensitivity(table *sensitivity.Table) sensitivityView {
	view := sensitivityView{
		Settings: make([]string, len(table.Settings)),
	}
	for i, s := range table.Settings {
		view.Settings[i] = s.String()
	}
	for _, label := range table.RobustLabels() {
		view.Robust = append(view.Robust, label.String())
	}

	cells := make(map[sensitivity.Setting]map[motif.Label]sensitivity.Row, len(table.Settings))
	for _, row := range table.Rows {
		if cells[row.Setting] == nil {
			cells[row.Setting] = make(map[motif.Label]sensitivity.Row)
		}
		cells[row.Setting][row.Label] = row
	}

	for _, label := range table.Labels() {
		rowView := sensitivityRowView{Label: label.String()}
		for _, setting := range table.Settings {
			row, ok := cells[setting][label]
			if !ok || row.Status == sensitivity.StatusAbsent {
				rowView.Cells = append(rowView.Cells, sensitivityCellView{})
				continue
			}
			rowView.Cells = append(rowView.Cells, sensitivityCellView{
				Present:  true,
				Selected: row.Selected,
				Stat:     row.Stat,
				PValue:   row.PValue,
			})
		}
		view.Rows = append(view.Rows, rowView)
	}
	return view
}

// handleArtifactDetail renders one ledger artifact with its raw payload
func (a *App) handleArtifactDetail(w http.ResponseWriter, r *http.Request) {
	artifactID := core.ArtifactID(chi.URLParam(r, "id"))

	artifact, err := a.reader.GetArtifact(r.Context(), artifactID)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.Error(w, "Artifact not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load artifact", http.StatusInternalServerError)
		return
	}

	payloadJSON, err := json.MarshalIndent(artifact.Payload, "", "  ")
	if err != nil {
		payloadJSON = []byte(fmt.Sprintf("unrenderable payload: %v", err))
	}

	data := map[string]interface{}{
		"Title":   "Artifact " + artifactID.String(),
		"ID":      artifact.ID.String(),
		"Kind":    string(artifact.Kind),
		"Created": artifact.CreatedAt.Time().Format(timeLayout),
		"Payload": string(payloadJSON),
	}
	a.renderTemplate(w, "artifact_detail.html", data)
}
