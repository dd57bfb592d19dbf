package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/interfaces/http/dto"
)

// ActionQueue is the queue surface the UI drives
type ActionQueue interface {
	Enqueue(ctx context.Context, payload syncdomain.ActionPayload) (uuid.UUID, error)
	List(ctx context.Context, status syncdomain.ActionStatus) ([]*syncdomain.QueuedAction, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ActionHandler exposes the offline action queue to the UI shell
type ActionHandler struct {
	BaseHandler
	queue ActionQueue
}

// NewActionHandler creates an action handler
func NewActionHandler(queue ActionQueue) *ActionHandler {
	return &ActionHandler{queue: queue}
}

type actionView struct {
	ID            string     `json:"id"`
	OwnerUserID   string     `json:"owner_user_id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	FailureReason string     `json:"failure_reason,omitempty"`
	EnqueuedAt    time.Time  `json:"enqueued_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toActionView(a *syncdomain.QueuedAction) actionView {
	return actionView{
		ID:            a.ID.String(),
		OwnerUserID:   a.OwnerUserID,
		Kind:          string(a.Kind),
		Status:        string(a.Status),
		Attempts:      a.Attempts,
		FailureReason: a.FailureReason,
		EnqueuedAt:    a.EnqueuedAt,
		CompletedAt:   a.CompletedAt,
	}
}

// Enqueue accepts an action from the UI and records it durably
func (h *ActionHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payload, ok := req.ToDomain()
	if !ok {
		h.BadRequest(c, "missing payload for kind "+req.Kind)
		return
	}

	id, err := h.queue.Enqueue(c, payload)
	if err != nil {
		h.DomainError(c, err)
		return
	}
	h.Created(c, gin.H{"id": id.String()})
}

// List returns queued actions filtered by status
func (h *ActionHandler) List(c *gin.Context) {
	status := syncdomain.ActionStatus(c.DefaultQuery("status", string(syncdomain.ActionStatusPending)))
	switch status {
	case syncdomain.ActionStatusPending, syncdomain.ActionStatusSent, syncdomain.ActionStatusFailed:
	default:
		h.BadRequest(c, "unknown status "+string(status))
		return
	}

	actions, err := h.queue.List(c, status)
	if err != nil {
		h.DomainError(c, err)
		return
	}

	views := make([]actionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, toActionView(a))
	}
	h.Success(c, views)
}

// MarkSent acknowledges an action the UI already delivered itself
func (h *ActionHandler) MarkSent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid action id")
		return
	}
	if err := h.queue.MarkSent(c, id); err != nil {
		h.DomainError(c, err)
		return
	}
	h.Success(c, gin.H{"id": id.String()})
}

type markFailedRequest struct {
	Reason string `json:"reason" binding:"required,max=512"`
}

// MarkFailed records a UI-observed delivery failure against an action
func (h *ActionHandler) MarkFailed(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid action id")
		return
	}

	var req markFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.queue.MarkFailed(c, id, req.Reason); err != nil {
		h.DomainError(c, err)
		return
	}
	h.Success(c, gin.H{"id": id.String()})
}

// RegisterRoutes wires the action queue endpoints
func (h *ActionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	actions := rg.Group("/actions")
	{
		actions.POST("", h.Enqueue)
		actions.GET("", h.List)
		actions.POST("/:id/sent", h.MarkSent)
		actions.POST("/:id/failed", h.MarkFailed)
	}
}
