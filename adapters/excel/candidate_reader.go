package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gomotif/domain/motif"
	"gomotif/domain/signal"
	"gomotif/ports"
)

// CandidateReader loads externally produced candidate lists from Excel or
// CSV files so they can be validated against the null battery. Rows that
// fail to parse become load issues instead of aborting the whole file.
type CandidateReader struct {
	logger *log.Logger
}

// NewCandidateReader creates a candidate reader for xlsx and csv sources
func NewCandidateReader() *CandidateReader {
	return &CandidateReader{
		logger: log.New(os.Stderr, "[CandidateReader] ", log.LstdFlags),
	}
}

// Required columns. The label column is optional; missing labels are derived
// from (center, size).
var requiredColumns = []string{"size", "center", "stat", "region_start", "region_end"}

// LoadCandidates reads a candidate list from the named file. The format is
// chosen by extension: .csv is parsed as CSV, anything else as an Excel
// workbook whose first sheet holds the table.
func (r *CandidateReader) LoadCandidates(ctx context.Context, path string) ([]motif.Candidate, []ports.LoadIssue, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("candidate file not found: %s", path)
	}

	var rows [][]string
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		rows, err = r.readCSVRows(path)
	} else {
		rows, err = r.readExcelRows(path)
	}
	if err != nil {
		return nil, nil, err
	}

	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("candidate file must have a header row and at least one data row")
	}

	columns, err := mapColumns(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var candidates []motif.Candidate
	var issues []ports.LoadIssue
	seen := make(map[motif.Label]bool)

	for i := 1; i < len(rows); i++ {
		// File rows are 1-indexed and row 1 is the header.
		fileRow := i + 1
		cand, err := parseCandidateRow(rows[i], columns)
		if err != nil {
			issues = append(issues, ports.LoadIssue{Row: fileRow, Reason: err.Error()})
			continue
		}
		if seen[cand.Label] {
			issues = append(issues, ports.LoadIssue{Row: fileRow, Reason: fmt.Sprintf("duplicate label %s", cand.Label)})
			continue
		}
		seen[cand.Label] = true
		candidates = append(candidates, cand)
	}

	r.logger.Printf("loaded %d candidates from %s (%d rows rejected)", len(candidates), path, len(issues))
	return candidates, issues, nil
}

func (r *CandidateReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func (r *CandidateReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// mapColumns resolves header names to column indices, case-insensitively.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("candidate file missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseCandidateRow(row []string, columns map[string]int) (motif.Candidate, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	size, err := strconv.Atoi(cell("size"))
	if err != nil {
		return motif.Candidate{}, fmt.Errorf("invalid size %q", cell("size"))
	}
	center, err := strconv.Atoi(cell("center"))
	if err != nil {
		return motif.Candidate{}, fmt.Errorf("invalid center %q", cell("center"))
	}
	stat, err := strconv.ParseFloat(cell("stat"), 64)
	if err != nil {
		return motif.Candidate{}, fmt.Errorf("invalid stat %q", cell("stat"))
	}
	start, err := strconv.Atoi(cell("region_start"))
	if err != nil {
		return motif.Candidate{}, fmt.Errorf("invalid region_start %q", cell("region_start"))
	}
	end, err := strconv.Atoi(cell("region_end"))
	if err != nil {
		return motif.Candidate{}, fmt.Errorf("invalid region_end %q", cell("region_end"))
	}

	label := motif.Label(cell("label"))
	if label == "" {
		label = motif.LabelFor(center, size)
	}

	return motif.NewCandidate(label, size, center, stat, signal.Region{Start: start, End: end})
}

var _ ports.CandidateSourcePort = (*CandidateReader)(nil)
