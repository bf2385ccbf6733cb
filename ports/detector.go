package ports

import (
	"context"

	"gomotif/domain/motif"
	"gomotif/domain/signal"
)

// DetectorPort produces motif candidates from a signal. The discovery
// algorithm behind it is interchangeable; the validation pipeline treats
// its output as given and never reaches into how candidates were found.
type DetectorPort interface {
	// Detect scans the signal and returns candidates above the threshold
	// percentile of the window statistic, in stable label order.
	Detect(ctx context.Context, sig *signal.Signal, thresholdPercentile int) ([]motif.Candidate, error)
}
