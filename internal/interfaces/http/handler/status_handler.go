package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wavechat/client/internal/application/connectivity"
	"github.com/wavechat/client/internal/application/session"
	"github.com/wavechat/client/internal/application/syncsched"
)

// PendingCounter exposes the number of actions awaiting dispatch
type PendingCounter interface {
	PendingCount(ctx context.Context) (int64, error)
}

// StatusHandler reports the daemon's live state to the UI shell
type StatusHandler struct {
	BaseHandler
	monitor   *connectivity.Monitor
	validator *session.Validator
	scheduler *syncsched.Scheduler
	queue     PendingCounter
}

// NewStatusHandler creates a status handler
func NewStatusHandler(monitor *connectivity.Monitor, validator *session.Validator, scheduler *syncsched.Scheduler, queue PendingCounter) *StatusHandler {
	return &StatusHandler{
		monitor:   monitor,
		validator: validator,
		scheduler: scheduler,
		queue:     queue,
	}
}

type statusView struct {
	Connectivity connectivityView `json:"connectivity"`
	Session      sessionView      `json:"session"`
	Sync         syncView         `json:"sync"`
	PendingCount int64            `json:"pending_count"`
}

type connectivityView struct {
	State            string     `json:"state"`
	BackendReachable *bool      `json:"backend_reachable"`
	LastProbeAt      time.Time  `json:"last_probe_at"`
	LastOnlineAt     *time.Time `json:"last_online_at,omitempty"`
}

type sessionView struct {
	Ready       bool       `json:"ready"`
	Validated   bool       `json:"validated"`
	UserID      string     `json:"user_id,omitempty"`
	Username    string     `json:"username,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type syncView struct {
	InProgress bool       `json:"in_progress"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
}

// Get assembles the aggregate status snapshot
func (h *StatusHandler) Get(c *gin.Context) {
	view := statusView{}

	net := h.monitor.Status()
	view.Connectivity = connectivityView{
		State:            string(net.State),
		BackendReachable: net.BackendReachable,
		LastProbeAt:      net.LastProbeAt,
	}
	if !net.LastOnlineAt.IsZero() {
		t := net.LastOnlineAt
		view.Connectivity.LastOnlineAt = &t
	}

	view.Session.Ready = h.validator.Ready()
	if sess := h.validator.Session(); sess != nil {
		view.Session.Validated = sess.Validated
		view.Session.UserID = sess.UserID
		view.Session.Username = sess.Profile.Username
		view.Session.DisplayName = sess.Profile.DisplayName
		if !sess.ExpiresAt.IsZero() {
			t := sess.ExpiresAt
			view.Session.ExpiresAt = &t
		}
	}

	cycle := h.scheduler.Status()
	view.Sync.InProgress = cycle.InProgress
	if !cycle.LastRunAt.IsZero() {
		t := cycle.LastRunAt
		view.Sync.LastRunAt = &t
	}

	if count, err := h.queue.PendingCount(c); err == nil {
		view.PendingCount = count
	}

	h.Success(c, view)
}

// RegisterRoutes wires the status endpoint
func (h *StatusHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.Get)
}
