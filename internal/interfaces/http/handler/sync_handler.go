package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// CycleRunner triggers a synchronization cycle on demand
type CycleRunner interface {
	RunCycle(ctx context.Context)
	Status() syncdomain.SyncCycleState
}

// SyncHandler lets the UI force a sync cycle, e.g. pull-to-refresh
type SyncHandler struct {
	BaseHandler
	scheduler CycleRunner
}

// NewSyncHandler creates a sync handler
func NewSyncHandler(scheduler CycleRunner) *SyncHandler {
	return &SyncHandler{scheduler: scheduler}
}

// Run starts a cycle if one is not already in flight
func (h *SyncHandler) Run(c *gin.Context) {
	h.scheduler.RunCycle(c)

	cycle := h.scheduler.Status()
	h.Success(c, gin.H{
		"in_progress": cycle.InProgress,
		"last_run_at": cycle.LastRunAt,
	})
}

// RegisterRoutes wires the manual sync endpoint
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync/run", h.Run)
}
