// Package connectivity owns the tri-state network signal. Its one design
// rule: a probe that times out proves nothing, so reachability goes back to
// indeterminate rather than offline.
package connectivity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wavechat/client/internal/application/flight"
	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// Prober issues one liveness check against the backend
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor runs periodic and on-demand health probes and broadcasts
// connectivity transitions on the event bus.
type Monitor struct {
	prober  Prober
	bus     shared.EventPublisher
	mirror  syncdomain.StateRepository
	logger  *zap.Logger
	probeTO time.Duration
	every   time.Duration

	mu       sync.RWMutex
	snapshot syncdomain.ConnectivitySnapshot

	probeFlight flight.Flight[syncdomain.ConnectivitySnapshot]

	readyOnce sync.Once
	readyCh   chan struct{}
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// MonitorOption is a functional option for configuring the monitor
type MonitorOption func(*Monitor)

// WithProbeInterval sets the silent probe interval
func WithProbeInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.every = interval
	}
}

// WithProbeTimeout bounds each health request
func WithProbeTimeout(timeout time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.probeTO = timeout
	}
}

// WithMirror persists the network snapshot after every transition so a
// restarted process starts from the last known state.
func WithMirror(repo syncdomain.StateRepository) MonitorOption {
	return func(m *Monitor) {
		m.mirror = repo
	}
}

// NewMonitor creates a connectivity monitor
func NewMonitor(prober Prober, bus shared.EventPublisher, logger *zap.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		prober:  prober,
		bus:     bus,
		logger:  logger.Named("connectivity"),
		probeTO: 5 * time.Second,
		every:   30 * time.Second,
		snapshot: syncdomain.ConnectivitySnapshot{
			State: syncdomain.ConnectivityChecking,
		},
		readyCh: make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes immediately, then silently on the configured interval
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.Probe(ctx)
		ticker := time.NewTicker(m.every)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Stop halts the probe loop
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Probe runs one single-flight health check and returns the resulting
// snapshot. Concurrent callers share the in-flight probe.
func (m *Monitor) Probe(ctx context.Context) syncdomain.ConnectivitySnapshot {
	snap, _ := m.probeFlight.Do(ctx, func(ctx context.Context) (syncdomain.ConnectivitySnapshot, error) {
		probeCtx, cancel := context.WithTimeout(ctx, m.probeTO)
		defer cancel()
		err := m.prober.Health(probeCtx)
		return m.apply(ctx, err), nil
	})
	return snap
}

// apply folds one probe outcome into the snapshot and broadcasts on change
func (m *Monitor) apply(ctx context.Context, probeErr error) syncdomain.ConnectivitySnapshot {
	m.mu.Lock()
	prev := m.snapshot
	next := prev
	next.LastProbeAt = time.Now()

	switch {
	case probeErr == nil:
		reachable := true
		next.State = syncdomain.ConnectivityOnline
		next.BackendReachable = &reachable
		next.LastOnlineAt = next.LastProbeAt
	case shared.IsTransient(probeErr):
		// Timeout proves nothing: back to checking, reachability
		// indeterminate. Never offline, never false.
		next.State = syncdomain.ConnectivityChecking
		next.BackendReachable = nil
	default:
		reachable := false
		next.State = syncdomain.ConnectivityOffline
		next.BackendReachable = &reachable
	}

	m.snapshot = next
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.readyCh) })

	if transitioned(prev, next) {
		m.logger.Info("connectivity changed",
			zap.String("from", string(prev.State)),
			zap.String("to", string(next.State)),
		)
		_ = m.bus.Publish(ctx, syncdomain.NewConnectivityChangedEvent(prev, next))
		m.persistMirror(ctx, next)
	} else {
		m.logger.Debug("probe completed", zap.String("state", string(next.State)))
	}
	return next
}

// transitioned compares the externally visible part of two snapshots
func transitioned(a, b syncdomain.ConnectivitySnapshot) bool {
	if a.State != b.State {
		return true
	}
	switch {
	case a.BackendReachable == nil && b.BackendReachable == nil:
		return false
	case a.BackendReachable == nil || b.BackendReachable == nil:
		return true
	default:
		return *a.BackendReachable != *b.BackendReachable
	}
}

func (m *Monitor) persistMirror(ctx context.Context, snap syncdomain.ConnectivitySnapshot) {
	if m.mirror == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := m.mirror.Set(ctx, syncdomain.StateKeyNetSnapshot, string(raw)); err != nil {
		m.logger.Warn("failed to mirror network snapshot", zap.Error(err))
	}
}

// Status returns the current connectivity snapshot
func (m *Monitor) Status() syncdomain.ConnectivitySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Online reports whether the backend is confirmed reachable
func (m *Monitor) Online() bool {
	return m.Status().Online()
}

// WaitReady blocks until the first probe has completed with any outcome,
// bounded by ctx. Session validation gates on this rather than on the
// probe succeeding: a slow first probe must not be mistaken for offline.
func (m *Monitor) WaitReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
