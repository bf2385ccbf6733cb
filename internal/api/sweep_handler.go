package api

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"gomotif/app"
	"gomotif/domain/core"
	"gomotif/domain/run"
	"gomotif/domain/sensitivity"
	"gomotif/ports"
)

// SweepHandler exposes threshold sensitivity sweeps over HTTP. In-flight
// sweeps are tracked so a cancel request can stop one between settings;
// completed settings stay committed.
type SweepHandler struct {
	service *app.SweepService
	repo    ports.SweepRepository
	ledger  ports.LedgerReaderPort

	// active maps sweep ID to the cancel func of its execution context.
	active sync.Map
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(service *app.SweepService, repo ports.SweepRepository, ledger ports.LedgerReaderPort) *SweepHandler {
	return &SweepHandler{
		service: service,
		repo:    repo,
		ledger:  ledger,
	}
}

// createSweepRequest starts one sweep. Settings are detector threshold
// percentiles, one full validation run each.
type createSweepRequest struct {
	SweepID  string        `json:"sweep_id"`
	Seed     int64         `json:"seed"`
	Signal   signalPayload `json:"signal" binding:"required"`
	Settings []int         `json:"settings" binding:"required"`
	Config   *run.Config   `json:"config"`
}

// CreateSweep schedules a sweep and returns 202 with its ID.
func (h *SweepHandler) CreateSweep(c *gin.Context) {
	var req createSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig, err := req.Signal.toSignal()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := make([]sensitivity.Setting, len(req.Settings))
	for i, s := range req.Settings {
		settings[i] = sensitivity.Setting(s)
		if err := settings[i].Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	cfg := run.DefaultConfig(req.Seed)
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sweepID := core.SweepID(req.SweepID)
	if core.ID(sweepID).IsEmpty() {
		sweepID = core.SweepID(core.NewID())
	}
	if _, running := h.active.Load(sweepID); running {
		c.JSON(http.StatusConflict, gin.H{"error": "sweep is already running"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.active.Store(sweepID, cancel)

	go func() {
		defer h.active.Delete(sweepID)
		defer cancel()
		if _, err := h.service.Execute(ctx, app.SweepRequest{
			SweepID:  sweepID,
			Signal:   sig,
			Settings: settings,
			Config:   cfg,
		}); err != nil {
			log.Printf("[API] Sweep %s failed: %v", sweepID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"sweep_id": sweepID,
		"status":   "accepted",
		"settings": req.Settings,
	})
}

// ListSweeps returns recent sweep records, newest first.
func (h *SweepHandler) ListSweeps(c *gin.Context) {
	limit := boundedIntQuery(c, "limit", 20, 100)

	sweeps, err := h.repo.ListSweeps(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sweeps"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sweeps": sweeps, "count": len(sweeps)})
}

// GetSweep returns one sweep record.
func (h *SweepHandler) GetSweep(c *gin.Context) {
	sweepID := core.SweepID(c.Param("id"))

	rec, err := h.repo.GetSweep(c.Request.Context(), sweepID)
	if err != nil {
		if core.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sweep not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sweep"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetSweepManifest returns the stored manifest for a sweep.
func (h *SweepHandler) GetSweepManifest(c *gin.Context) {
	sweepID := core.SweepID(c.Param("id"))

	manifest, err := h.ledger.GetSweepManifest(c.Request.Context(), sweepID)
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

// CancelSweep stops an in-flight sweep at the next setting boundary.
// Settings that already completed stay committed.
func (h *SweepHandler) CancelSweep(c *gin.Context) {
	sweepID := core.SweepID(c.Param("id"))

	cancel, running := h.active.Load(sweepID)
	if !running {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active sweep with that ID"})
		return
	}

	cancel.(context.CancelFunc)()
	c.JSON(http.StatusAccepted, gin.H{
		"sweep_id": sweepID,
		"status":   "cancelling",
	})
}

// DeleteSweep removes a finished sweep, its runs and their artifacts.
// Running sweeps must be cancelled first.
func (h *SweepHandler) DeleteSweep(c *gin.Context) {
	sweepID := core.SweepID(c.Param("id"))

	if _, running := h.active.Load(sweepID); running {
		c.JSON(http.StatusConflict, gin.H{"error": "sweep is running, cancel it first"})
		return
	}

	if err := h.repo.DeleteSweep(c.Request.Context(), sweepID); err != nil {
		if core.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sweep not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete sweep"})
		return
	}

	c.Status(http.StatusNoContent)
}
