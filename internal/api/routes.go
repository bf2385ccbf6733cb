package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires all diagnostic endpoints onto the router.
func RegisterRoutes(router *gin.Engine, runs *RunHandler, sweeps *SweepHandler, hub *SSEHub) {
	router.GET("/health", func(c *gin.Context) {
		activeRuns := hub.GetActiveRuns()
		clients := 0
		for _, id := range activeRuns {
			clients += hub.GetClientCount(id)
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"active_runs": activeRuns,
			"sse_clients": clients,
		})
	})

	api := router.Group("/api")
	{
		api.POST("/runs", runs.CreateRun)
		api.GET("/runs", runs.ListRuns)
		api.GET("/runs/:id", runs.GetRun)
		api.GET("/runs/:id/manifest", runs.GetRunManifest)
		api.GET("/runs/:id/artifacts", runs.ListRunArtifacts)
		api.GET("/runs/:id/summary", runs.GetRunSummary)
		api.GET("/artifacts/:id", runs.GetArtifact)

		api.POST("/sweeps", sweeps.CreateSweep)
		api.GET("/sweeps", sweeps.ListSweeps)
		api.GET("/sweeps/:id", sweeps.GetSweep)
		api.GET("/sweeps/:id/manifest", sweeps.GetSweepManifest)
		api.POST("/sweeps/:id/cancel", sweeps.CancelSweep)
		api.DELETE("/sweeps/:id", sweeps.DeleteSweep)

		api.GET("/events", hub.HandleSSE) // SSE endpoint for run progress
	}
}
