package ports

import (
	"context"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/sensitivity"
	"gomotif/domain/stability"
)

// ExporterPort writes reviewer-facing workbooks from validation artifacts
type ExporterPort interface {
	// ExportSensitivity writes the threshold sensitivity table
	ExportSensitivity(ctx context.Context, path string, table *sensitivity.Table) error

	// ExportAdjudication writes the manual review template for one run:
	// selected candidates with their evidence plus blank decision columns
	ExportAdjudication(ctx context.Context, path string, req AdjudicationRequest) error
}

// AdjudicationRequest bundles everything the review template shows per candidate.
type AdjudicationRequest struct {
	RunID      core.RunID
	Candidates []motif.Candidate
	Stability  *stability.Report
}
