package api

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gomotif/app"
	"gomotif/domain/core"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/ports"
)

// RunHandler exposes validation runs over HTTP. Execution is asynchronous:
// POST returns 202 with the run ID and clients follow progress over SSE or
// by polling the run record.
type RunHandler struct {
	service *app.RunService
	repo    ports.RunRepository
	ledger  ports.LedgerReaderPort
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *app.RunService, repo ports.RunRepository, ledger ports.LedgerReaderPort) *RunHandler {
	return &RunHandler{
		service: service,
		repo:    repo,
		ledger:  ledger,
	}
}

// signalPayload is the wire form of a scored series.
type signalPayload struct {
	Key    string    `json:"key" binding:"required"`
	Values []float64 `json:"values" binding:"required"`
}

func (p signalPayload) toSignal() (*signal.Signal, error) {
	return signal.New(core.SignalKey(p.Key), p.Values)
}

// createRunRequest starts one validation run. Config is all-or-nothing:
// omitted means the standard parameterization under the given seed.
type createRunRequest struct {
	RunID  string        `json:"run_id"`
	Seed   int64         `json:"seed"`
	Signal signalPayload `json:"signal" binding:"required"`
	Config *run.Config   `json:"config"`
}

// CreateRun schedules a validation run and returns 202 with its ID.
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig, err := req.Signal.toSignal()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := run.DefaultConfig(req.Seed)
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := core.RunID(req.RunID)
	if core.ID(runID).IsEmpty() {
		runID = core.RunID(core.NewID())
	}

	// The request context dies with this response; the run gets its own.
	go func() {
		if _, err := h.service.Execute(context.Background(), app.RunRequest{
			RunID:  runID,
			Signal: sig,
			Config: cfg,
		}); err != nil {
			log.Printf("[API] Run %s failed: %v", runID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":     runID,
		"status":     "accepted",
		"signal_key": sig.Key,
		"signal_len": sig.Len(),
	})
}

// ListRuns returns recent run records, newest first.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := boundedIntQuery(c, "limit", 20, 100)

	runs, err := h.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns one run record.
func (h *RunHandler) GetRun(c *gin.Context) {
	runID := core.RunID(c.Param("id"))

	rec, err := h.repo.GetRun(c.Request.Context(), runID)
	if err != nil {
		if core.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetRunManifest returns the stored manifest for a run.
func (h *RunHandler) GetRunManifest(c *gin.Context) {
	runID := core.RunID(c.Param("id"))

	manifest, err := h.ledger.GetRunManifest(c.Request.Context(), runID)
	if err != nil {
		if core.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "manifest not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load manifest"})
		return
	}

	c.JSON(http.StatusOK, manifest)
}

// ListRunArtifacts returns the artifacts stored under one run, oldest
// first, optionally filtered by kind.
func (h *RunHandler) ListRunArtifacts(c *gin.Context) {
	runID := core.RunID(c.Param("id"))
	filters := ports.ArtifactFilters{
		RunID:  &runID,
		Limit:  boundedIntQuery(c, "limit", 0, 1000),
		Offset: boundedIntQuery(c, "offset", 0, 1<<20),
	}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind := core.ArtifactKind(kindStr)
		filters.Kind = &kind
	}

	artifacts, err := h.ledger.ListArtifacts(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list artifacts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"artifacts": artifacts, "count": len(artifacts)})
}

// GetRunSummary returns the run's markdown report as plain markdown.
func (h *RunHandler) GetRunSummary(c *gin.Context) {
	runID := core.RunID(c.Param("id"))
	kind := core.ArtifactRunSummary

	artifacts, err := h.ledger.ListArtifacts(c.Request.Context(), ports.ArtifactFilters{
		RunID: &runID,
		Kind:  &kind,
		Limit: 1,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summary"})
		return
	}
	if len(artifacts) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
		return
	}

	summary, ok := artifacts[0].Payload.(*run.SummaryArtifact)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary payload has unexpected type"})
		return
	}

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(summary.Markdown))
}

// GetArtifact returns a single artifact by ID.
func (h *RunHandler) GetArtifact(c *gin.Context) {
	artifactID, err := core.ParseArtifactID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artifact, err := h.ledger.GetArtifact(c.Request.Context(), artifactID)
	if err != nil {
		if core.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load artifact"})
		return
	}

	c.JSON(http.StatusOK, artifact)
}

// boundedIntQuery parses a non-negative int query param with a fallback and
// an upper bound.
func boundedIntQuery(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}
