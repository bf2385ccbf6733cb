package excel

import (
	"context"

	"github.com/xuri/excelize/v2"

	"gomotif/domain/motif"
	"gomotif/domain/sensitivity"
	"gomotif/domain/stability"
	"gomotif/internal/errors"
	"gomotif/ports"
)

// WorkbookExporter writes reviewer-facing workbooks. Sensitivity tables go
// out as one row per (setting, label) cell; adjudication templates carry the
// evidence per selected candidate plus blank decision columns for the
// reviewer to fill in.
type WorkbookExporter struct{}

// NewWorkbookExporter creates an Excel workbook exporter
func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

// ExportSensitivity writes the threshold sensitivity table. A second sheet
// lists the labels selected under every setting.
func (e *WorkbookExporter) ExportSensitivity(ctx context.Context, path string, table *sensitivity.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if table == nil {
		return errors.InvalidInput("nil sensitivity table")
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sensitivity"
	if err := renameDefaultSheet(f, sheet); err != nil {
		return errors.ExportError(path, err)
	}

	headers := []string{"setting", "label", "stat", "pval", "selected", "status"}
	if err := writeRow(f, sheet, 1, toCells(headers)); err != nil {
		return errors.ExportError(path, err)
	}
	for i, row := range table.Rows {
		cells := []interface{}{
			row.Setting.String(),
			row.Label.String(),
			row.Stat,
			row.PValue,
			row.Selected,
			string(row.Status),
		}
		// Absent cells carry no measurements; blank them instead of
		// writing misleading zeros.
		if row.Status == sensitivity.StatusAbsent {
			cells[2], cells[3], cells[4] = "", "", ""
		}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return errors.ExportError(path, err)
		}
	}

	robustSheet := "Robust"
	if _, err := f.NewSheet(robustSheet); err != nil {
		return errors.ExportError(path, err)
	}
	if err := writeRow(f, robustSheet, 1, toCells([]string{"label"})); err != nil {
		return errors.ExportError(path, err)
	}
	for i, label := range table.RobustLabels() {
		if err := writeRow(f, robustSheet, i+2, []interface{}{label.String()}); err != nil {
			return errors.ExportError(path, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.ExportError(path, err)
	}
	return nil
}

// ExportAdjudication writes the manual review template for one run. Each
// candidate row ends with empty adjudicator_note and final_label columns.
func (e *WorkbookExporter) ExportAdjudication(ctx context.Context, path string, req ports.AdjudicationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(req.Candidates) == 0 {
		return errors.InvalidInput("no candidates to adjudicate")
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Adjudication"
	if err := renameDefaultSheet(f, sheet); err != nil {
		return errors.ExportError(path, err)
	}

	headers := []string{
		"run_id", "label", "size", "center", "stat", "pval", "selected",
		"stability_frequency", "unstable", "adjudicator_note", "final_label",
	}
	if err := writeRow(f, sheet, 1, toCells(headers)); err != nil {
		return errors.ExportError(path, err)
	}

	freqs := frequencyIndex(req.Stability)
	for i, cand := range req.Candidates {
		cells := []interface{}{
			req.RunID.String(),
			cand.Label.String(),
			cand.Size,
			cand.Center,
			cand.Stat,
			cand.PValue,
			cand.Selected,
		}
		if freq, ok := freqs[cand.Label]; ok {
			cells = append(cells, freq.Frequency, freq.Unstable)
		} else {
			cells = append(cells, "", "")
		}
		cells = append(cells, "", "")
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return errors.ExportError(path, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.ExportError(path, err)
	}
	return nil
}

func frequencyIndex(report *stability.Report) map[motif.Label]stability.LabelFrequency {
	out := make(map[motif.Label]stability.LabelFrequency)
	if report == nil {
		return out
	}
	for _, lf := range report.SelectionFrequency {
		out[lf.Label] = lf
	}
	return out
}

// renameDefaultSheet renames the workbook's initial sheet so output files
// never carry an empty Sheet1.
func renameDefaultSheet(f *excelize.File, name string) error {
	defaultSheet := f.GetSheetName(0)
	if defaultSheet == name {
		return nil
	}
	return f.SetSheetName(defaultSheet, name)
}

func writeRow(f *excelize.File, sheet string, rowIdx int, cells []interface{}) error {
	for c, v := range cells {
		cell, err := excelize.CoordinatesToCellName(c+1, rowIdx)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

var _ ports.ExporterPort = (*WorkbookExporter)(nil)
