package syncsched

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/infrastructure/config"
	"github.com/wavechat/client/internal/infrastructure/event"
)

type stubStatus struct{ online atomic.Bool }

func (s *stubStatus) Online() bool { return s.online.Load() }

type stubSessionControl struct {
	mu           sync.Mutex
	session      *syncdomain.Session
	ready        bool
	revalidateOK bool
	refreshN     atomic.Int32
	revalidateN  atomic.Int32
}

func (s *stubSessionControl) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *stubSessionControl) Session() *syncdomain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *stubSessionControl) Revalidate(ctx context.Context) bool {
	s.revalidateN.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.Validated {
		return true
	}
	if !s.revalidateOK || s.session == nil {
		return false
	}
	s.session = &syncdomain.Session{Token: s.session.Token, UserID: s.session.UserID, Validated: true}
	s.ready = true
	return true
}

func (s *stubSessionControl) RefreshIfNeeded(ctx context.Context) error {
	s.refreshN.Add(1)
	return nil
}

func (s *stubSessionControl) setValidated(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &syncdomain.Session{Token: "tok-1", UserID: userID, Validated: true}
	s.ready = true
}

type stubDrainer struct{ drains atomic.Int32 }

func (d *stubDrainer) Drain(ctx context.Context) error {
	d.drains.Add(1)
	return nil
}

type stubFetcher struct {
	mu      sync.Mutex
	fetched []string
	err     error
}

func (f *stubFetcher) FetchResource(ctx context.Context, token, key string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.fetched = append(f.fetched, key)
	return map[string]any{"key": key}, nil
}

type stubAffirmer struct{ calls atomic.Int32 }

func (a *stubAffirmer) Me(ctx context.Context, token string) (syncdomain.User, error) {
	a.calls.Add(1)
	return syncdomain.User{ID: "user-1"}, nil
}

type stubCacheWriter struct {
	mu   sync.Mutex
	sets map[string]any
}

func (c *stubCacheWriter) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]any{}
	}
	c.sets[key] = value
	return nil
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:     true,
		Interval:    time.Hour,
		SettleDelay: time.Millisecond,
		BatchSize:   2,
		BatchDelay:  time.Millisecond,
	}
}

type fixture struct {
	scheduler *Scheduler
	status    *stubStatus
	sessions  *stubSessionControl
	drainer   *stubDrainer
	fetcher   *stubFetcher
	affirmer  *stubAffirmer
	cache     *stubCacheWriter
	bus       *event.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		status:   &stubStatus{},
		sessions: &stubSessionControl{},
		drainer:  &stubDrainer{},
		fetcher:  &stubFetcher{},
		affirmer: &stubAffirmer{},
		cache:    &stubCacheWriter{},
		bus:      event.NewBus(zap.NewNop()),
	}
	f.scheduler = NewScheduler(f.status, f.sessions, f.drainer, f.fetcher, f.affirmer, f.cache, f.bus, testSchedulerConfig(), zap.NewNop())
	return f
}

func TestRunCycleGates(t *testing.T) {
	ctx := context.Background()

	t.Run("skips while offline", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.setValidated("user-1")

		f.scheduler.RunCycle(ctx)
		assert.Zero(t, f.drainer.drains.Load())
	})

	t.Run("skips without a validated session", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)

		f.scheduler.RunCycle(ctx)
		assert.Zero(t, f.drainer.drains.Load())

		// Degraded readiness is not enough either.
		f.sessions.mu.Lock()
		f.sessions.ready = true
		f.sessions.session = &syncdomain.Session{Token: "tok-1", UserID: "user-1", Validated: false}
		f.sessions.mu.Unlock()

		f.scheduler.RunCycle(ctx)
		assert.Zero(t, f.drainer.drains.Load())
		assert.EqualValues(t, 1, f.sessions.revalidateN.Load(), "a degraded session is still re-checked")
	})

	t.Run("degraded session recovers and drains once reachable", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.mu.Lock()
		f.sessions.session = &syncdomain.Session{Token: "tok-1", UserID: "user-1", Validated: false}
		f.sessions.revalidateOK = true
		f.sessions.mu.Unlock()

		f.scheduler.RunCycle(ctx)

		assert.EqualValues(t, 1, f.sessions.revalidateN.Load())
		assert.EqualValues(t, 1, f.drainer.drains.Load(), "queue drains in the same cycle that confirms the session")

		// A confirmed session is not re-checked on later cycles.
		f.scheduler.RunCycle(ctx)
		assert.EqualValues(t, 1, f.sessions.revalidateN.Load())
		assert.EqualValues(t, 2, f.drainer.drains.Load())
	})

	t.Run("full cycle runs every step", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-1")

		f.scheduler.RunCycle(ctx)

		assert.EqualValues(t, 1, f.drainer.drains.Load())
		assert.EqualValues(t, 1, f.affirmer.calls.Load())
		assert.EqualValues(t, 1, f.sessions.refreshN.Load())

		status := f.scheduler.Status()
		assert.False(t, status.InProgress)
		assert.False(t, status.LastRunAt.IsZero())
	})
}

func TestStaleRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("marked keys are refetched and cached", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-1")

		var dataReady []shared.Event
		var mu sync.Mutex
		f.bus.Subscribe(&shared.HandlerFunc{
			Types: []string{syncdomain.EventCacheDataReady},
			Fn: func(ctx context.Context, ev shared.Event) error {
				mu.Lock()
				dataReady = append(dataReady, ev)
				mu.Unlock()
				return nil
			},
		})

		f.scheduler.Start(ctx)
		defer f.scheduler.Stop()

		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewCacheRefreshNeededEvent("user-1", "conversations")))
		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewCacheRefreshNeededEvent("user-1", "friends")))
		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewCacheRefreshNeededEvent("user-1", "profile")))

		f.scheduler.RunCycle(ctx)

		f.fetcher.mu.Lock()
		fetched := len(f.fetcher.fetched)
		f.fetcher.mu.Unlock()
		assert.Equal(t, 3, fetched)

		f.cache.mu.Lock()
		assert.Len(t, f.cache.sets, 3)
		f.cache.mu.Unlock()

		mu.Lock()
		assert.Len(t, dataReady, 3)
		mu.Unlock()
	})

	t.Run("keys marked under another owner are dropped", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-2")

		f.scheduler.Start(ctx)
		defer f.scheduler.Stop()

		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewCacheRefreshNeededEvent("user-1", "conversations")))
		f.scheduler.RunCycle(ctx)

		f.fetcher.mu.Lock()
		assert.Empty(t, f.fetcher.fetched)
		f.fetcher.mu.Unlock()
	})

	t.Run("fetch failure leaves the cache untouched", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-1")
		f.fetcher.err = shared.ErrTransientNetwork

		f.scheduler.Start(ctx)
		defer f.scheduler.Stop()

		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewCacheRefreshNeededEvent("user-1", "conversations")))
		f.scheduler.RunCycle(ctx)

		f.cache.mu.Lock()
		assert.Empty(t, f.cache.sets)
		f.cache.mu.Unlock()
	})
}

func TestEventTriggers(t *testing.T) {
	ctx := context.Background()

	t.Run("going online triggers a cycle", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-1")

		f.scheduler.Start(ctx)
		defer f.scheduler.Stop()

		reachable := true
		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewConnectivityChangedEvent(
			syncdomain.ConnectivitySnapshot{State: syncdomain.ConnectivityChecking},
			syncdomain.ConnectivitySnapshot{State: syncdomain.ConnectivityOnline, BackendReachable: &reachable},
		)))

		require.Eventually(t, func() bool {
			return f.drainer.drains.Load() == 1
		}, time.Second, 5*time.Millisecond, "offline-enqueued work drains after reconnect")
	})

	t.Run("going offline does not trigger", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-1")

		f.scheduler.Start(ctx)
		defer f.scheduler.Stop()

		reachable := false
		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewConnectivityChangedEvent(
			syncdomain.ConnectivitySnapshot{State: syncdomain.ConnectivityOnline},
			syncdomain.ConnectivitySnapshot{State: syncdomain.ConnectivityOffline, BackendReachable: &reachable},
		)))

		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, f.drainer.drains.Load())
	})

	t.Run("auth ready triggers a cycle", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-1")

		f.scheduler.Start(ctx)
		defer f.scheduler.Stop()

		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewAuthReadyEvent("user-1", true)))

		require.Eventually(t, func() bool {
			return f.drainer.drains.Load() == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("disabled scheduler ignores triggers", func(t *testing.T) {
		f := newFixture(t)
		f.status.online.Store(true)
		f.sessions.setValidated("user-1")
		cfg := testSchedulerConfig()
		cfg.Enabled = false
		f.scheduler = NewScheduler(f.status, f.sessions, f.drainer, f.fetcher, f.affirmer, f.cache, f.bus, cfg, zap.NewNop())

		f.scheduler.Start(ctx)
		defer f.scheduler.Stop()

		require.NoError(t, f.bus.Publish(ctx, syncdomain.NewAuthReadyEvent("user-1", true)))
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, f.drainer.drains.Load())
	})
}
