// Package syncsched orchestrates background synchronization: queue drains,
// stale cache refreshes and auth re-affirmation, gated on connectivity and
// a validated session. Cycles are single-flight; triggers and the safety
// net interval never overlap.
package syncsched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wavechat/client/internal/application/flight"
	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/infrastructure/config"
)

// StatusSource exposes the connectivity gate
type StatusSource interface {
	Online() bool
}

// SessionControl exposes the session state the scheduler gates on
type SessionControl interface {
	Ready() bool
	Session() *syncdomain.Session
	Revalidate(ctx context.Context) bool
	RefreshIfNeeded(ctx context.Context) error
}

// Drainer drains the offline action queue
type Drainer interface {
	Drain(ctx context.Context) error
}

// ResourceFetcher reads one cacheable resource from the backend
type ResourceFetcher interface {
	FetchResource(ctx context.Context, token, key string) (map[string]any, error)
}

// AuthAffirmer re-checks the identity route availability
type AuthAffirmer interface {
	Me(ctx context.Context, token string) (syncdomain.User, error)
}

// CacheWriter writes refreshed values into the user-scoped cache
type CacheWriter interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Scheduler runs sync cycles on triggers and on a safety-net interval
type Scheduler struct {
	status   StatusSource
	sessions SessionControl
	drainer  Drainer
	fetcher  ResourceFetcher
	affirmer AuthAffirmer
	cache    CacheWriter
	bus      shared.EventBus
	cfg      config.SchedulerConfig
	logger   *zap.Logger

	cycleFlight flight.Flight[struct{}]

	mu        sync.Mutex
	lastRunAt time.Time

	staleMu   sync.Mutex
	staleKeys map[string]string // logical key -> owner at marking time

	handler  *shared.HandlerFunc
	wake     chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewScheduler creates a sync scheduler
func NewScheduler(status StatusSource, sessions SessionControl, drainer Drainer, fetcher ResourceFetcher, affirmer AuthAffirmer, cache CacheWriter, bus shared.EventBus, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		status:    status,
		sessions:  sessions,
		drainer:   drainer,
		fetcher:   fetcher,
		affirmer:  affirmer,
		cache:     cache,
		bus:       bus,
		cfg:       cfg,
		logger:    logger.Named("scheduler"),
		staleKeys: make(map[string]string),
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start subscribes to triggers and launches the interval loop
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return
	}

	s.handler = &shared.HandlerFunc{
		Types: []string{
			syncdomain.EventConnectivityChanged,
			syncdomain.EventAuthReady,
			syncdomain.EventCacheRefreshNeeded,
		},
		Fn: s.onEvent,
	}
	s.bus.Subscribe(s.handler)

	go s.loop(ctx)
}

// Stop unsubscribes and halts the loop
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.handler != nil {
			s.bus.Unsubscribe(s.handler)
		}
		close(s.stopCh)
	})
}

// onEvent reacts to bus triggers
func (s *Scheduler) onEvent(ctx context.Context, ev shared.Event) error {
	switch e := ev.(type) {
	case *syncdomain.ConnectivityChangedEvent:
		if e.Current.Online() {
			s.kick()
		}
	case *syncdomain.AuthReadyEvent:
		// A freshly validated session flushes whatever queued up
		// while authentication was pending.
		s.kick()
	case *syncdomain.CacheRefreshNeededEvent:
		s.staleMu.Lock()
		s.staleKeys[e.Key] = e.OwnerUserID
		s.staleMu.Unlock()
	}
	return nil
}

// kick schedules a cycle after the settle delay, collapsing bursts
func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop runs triggered cycles plus the fixed safety-net interval
func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-s.wake:
			// Let the connection settle before the burst of work
			select {
			case <-time.After(s.cfg.SettleDelay):
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
			s.RunCycle(ctx)
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one sync cycle. Idempotent: a cycle already in
// progress makes concurrent callers wait for it instead of stacking.
func (s *Scheduler) RunCycle(ctx context.Context) {
	_, _ = s.cycleFlight.Do(ctx, func(ctx context.Context) (struct{}, error) {
		s.runCycle(ctx)
		return struct{}{}, nil
	})
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.status.Online() {
		s.logger.Debug("cycle skipped, offline")
		return
	}
	session := s.sessions.Session()
	if session != nil && !session.Validated {
		// A session adopted while the backend was unreachable gets its
		// identity check replayed now that a cycle can reach it.
		if s.sessions.Revalidate(ctx) {
			session = s.sessions.Session()
		}
	}
	if session == nil || !session.Validated || !s.sessions.Ready() {
		s.logger.Debug("cycle skipped, session unconfirmed",
			zap.Bool("auth_ready", s.sessions.Ready()),
		)
		return
	}

	started := time.Now()
	s.mu.Lock()
	s.lastRunAt = started
	s.mu.Unlock()

	// Each step is best-effort: a failure in one never aborts the others.
	if err := s.drainer.Drain(ctx); err != nil {
		s.logger.Warn("queue drain failed", zap.Error(err))
	}

	s.refreshStale(ctx, session.Token)

	if _, err := s.affirmer.Me(ctx, session.Token); err != nil {
		s.logger.Warn("auth route re-affirmation failed", zap.Error(err))
	} else {
		_ = s.bus.Publish(ctx, syncdomain.NewBackendReadyEvent())
	}

	if err := s.sessions.RefreshIfNeeded(ctx); err != nil {
		s.logger.Warn("token refresh failed", zap.Error(err))
	}

	s.logger.Debug("cycle complete", zap.Duration("elapsed", time.Since(started)))
}

// refreshStale revalidates keys marked stale since the last cycle and
// notifies the UI in small batches with tiny delays, so one cycle never
// triggers a single large repaint.
func (s *Scheduler) refreshStale(ctx context.Context, token string) {
	s.staleMu.Lock()
	keys := s.staleKeys
	s.staleKeys = make(map[string]string)
	s.staleMu.Unlock()
	if len(keys) == 0 {
		return
	}

	activeOwner := ""
	if session := s.sessions.Session(); session != nil {
		activeOwner = session.UserID
	}

	var ready []shared.Event
	for key, owner := range keys {
		// Keys marked under a previous owner are dropped, not fetched
		if owner != activeOwner {
			continue
		}
		value, err := s.fetcher.FetchResource(ctx, token, key)
		if err != nil {
			s.logger.Debug("background refresh failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if err := s.cache.Set(ctx, key, value, 0); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			continue
		}
		ready = append(ready, syncdomain.NewCacheDataReadyEvent(owner, key))
	}

	for i := 0; i < len(ready); i += s.cfg.BatchSize {
		end := min(i+s.cfg.BatchSize, len(ready))
		_ = s.bus.Publish(ctx, ready[i:end]...)
		if end < len(ready) {
			time.Sleep(s.cfg.BatchDelay)
		}
	}
}

// Status returns the ephemeral cycle state
func (s *Scheduler) Status() syncdomain.SyncCycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return syncdomain.SyncCycleState{
		InProgress: s.cycleFlight.Running(),
		LastRunAt:  s.lastRunAt,
	}
}
