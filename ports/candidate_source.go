package ports

import (
	"context"

	"gomotif/domain/motif"
)

// CandidateSourcePort loads externally supplied candidate lists, for
// validating candidates produced outside the built-in detector.
type CandidateSourcePort interface {
	// LoadCandidates reads candidates from the named source. Rows that fail
	// validation are returned as LoadIssues rather than aborting the load.
	LoadCandidates(ctx context.Context, path string) ([]motif.Candidate, []LoadIssue, error)
}

// LoadIssue describes one rejected input row.
type LoadIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
