package api

import (
	"time"

	"gomotif/app"
	"gomotif/domain/core"
)

// ProgressBroadcaster adapts the SSEHub to the pipeline's progress sink, so
// application services stay unaware of the transport.
type ProgressBroadcaster struct {
	hub *SSEHub
}

// NewProgressBroadcaster creates a new SSE progress broadcaster
func NewProgressBroadcaster(hub *SSEHub) *ProgressBroadcaster {
	return &ProgressBroadcaster{hub: hub}
}

// RunPhase broadcasts one pipeline phase transition.
func (b *ProgressBroadcaster) RunPhase(runID core.RunID, phase, detail string) {
	b.hub.Broadcast(RunEvent{
		RunID:     runID.String(),
		Phase:     phase,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

var _ app.ProgressSink = (*ProgressBroadcaster)(nil)
