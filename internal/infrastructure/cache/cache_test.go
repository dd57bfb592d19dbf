package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// recordingBus captures published events for assertions
type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(ctx context.Context, events ...shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *recordingBus) byType(eventType string) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.Event
	for _, ev := range b.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestCache(t *testing.T, opts ...CacheOption) (*UserScopedCache, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	opts = append([]CacheOption{WithJanitorInterval(time.Hour)}, opts...)
	c := NewUserScopedCache(NewMemoryStore(), bus, zap.NewNop(), opts...)
	t.Cleanup(c.Close)
	return c, bus
}

func TestOwnerIsolation(t *testing.T) {
	ctx := context.Background()

	t.Run("no owner means no reads or writes", func(t *testing.T) {
		c, _ := newTestCache(t)
		err := c.Set(ctx, "conversations", []string{"c1"}, time.Minute)
		require.ErrorIs(t, err, shared.ErrInvalidState)
		_, ok := c.Get(ctx, "conversations", true)
		assert.False(t, ok)
	})

	t.Run("switching owner flips the visible keyspace", func(t *testing.T) {
		c, _ := newTestCache(t)
		c.SetOwner("user-1")
		require.NoError(t, c.Set(ctx, "conversations", []string{"c1"}, time.Minute))

		_, ok := c.Get(ctx, "conversations", true)
		assert.True(t, ok)

		c.SetOwner("user-2")
		_, ok = c.Get(ctx, "conversations", true)
		assert.False(t, ok, "user-2 must not see user-1 data")

		c.SetOwner("user-1")
		_, ok = c.Get(ctx, "conversations", true)
		assert.True(t, ok, "user-1 data survives the switch")
	})

	t.Run("clear owner purges only that owner", func(t *testing.T) {
		c, _ := newTestCache(t)
		c.SetOwner("user-1")
		require.NoError(t, c.Set(ctx, "friends", []string{"u2"}, time.Minute))
		c.SetOwner("user-2")
		require.NoError(t, c.Set(ctx, "friends", []string{"u3"}, time.Minute))

		require.NoError(t, c.ClearOwner(ctx, "user-1"))

		_, ok := c.Get(ctx, "friends", true)
		assert.True(t, ok, "user-2 data untouched")

		c.SetOwner("user-1")
		_, ok = c.Get(ctx, "friends", true)
		assert.False(t, ok)
	})
}

func TestStaleWhileRevalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("expired entry still served when stale allowed", func(t *testing.T) {
		c, _ := newTestCache(t)
		c.SetOwner("user-1")
		require.NoError(t, c.Set(ctx, "profile", map[string]string{"name": "ada"}, time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		raw, ok := c.Get(ctx, "profile", true)
		require.True(t, ok)
		assert.NotEmpty(t, raw)

		_, ok = c.Get(ctx, "profile", false)
		assert.False(t, ok, "strict read rejects expired data")
	})

	t.Run("stale read while online triggers refresh event", func(t *testing.T) {
		c, bus := newTestCache(t, WithOnlineCheck(func() bool { return true }))
		c.SetOwner("user-1")
		require.NoError(t, c.Set(ctx, "profile", "v1", time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		_, ok := c.Get(ctx, "profile", true)
		require.True(t, ok)

		events := bus.byType(syncdomain.EventCacheRefreshNeeded)
		require.Len(t, events, 1)
		refresh, ok := events[0].(*syncdomain.CacheRefreshNeededEvent)
		require.True(t, ok)
		assert.Equal(t, "user-1", refresh.OwnerUserID)
		assert.Equal(t, "profile", refresh.Key)
	})

	t.Run("stale read while offline stays silent", func(t *testing.T) {
		c, bus := newTestCache(t, WithOnlineCheck(func() bool { return false }))
		c.SetOwner("user-1")
		require.NoError(t, c.Set(ctx, "profile", "v1", time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		_, ok := c.Get(ctx, "profile", true)
		require.True(t, ok)
		assert.Empty(t, bus.byType(syncdomain.EventCacheRefreshNeeded))
	})

	t.Run("fresh read never triggers refresh", func(t *testing.T) {
		c, bus := newTestCache(t, WithOnlineCheck(func() bool { return true }))
		c.SetOwner("user-1")
		require.NoError(t, c.Set(ctx, "profile", "v1", time.Minute))

		_, ok := c.Get(ctx, "profile", true)
		require.True(t, ok)
		assert.Empty(t, bus.byType(syncdomain.EventCacheRefreshNeeded))
	})
}

func TestGetInto(t *testing.T) {
	c, _ := newTestCache(t)
	c.SetOwner("user-1")
	ctx := context.Background()

	type profile struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.Set(ctx, "profile", profile{Name: "ada"}, time.Minute))

	var out profile
	require.True(t, c.GetInto(ctx, "profile", true, &out))
	assert.Equal(t, "ada", out.Name)

	assert.False(t, c.GetInto(ctx, "missing", true, &out))
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(t)
	c.SetOwner("user-1")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	c.Get(ctx, "a", true)
	c.Get(ctx, "a", true)
	c.Get(ctx, "missing", true)

	hits, misses := c.Stats()
	assert.EqualValues(t, 2, hits)
	assert.EqualValues(t, 1, misses)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	put := func(key string, ttl time.Duration) {
		now := time.Now()
		require.NoError(t, store.Put(ctx, key, Entry{
			OwnerUserID: "user-1",
			Payload:     []byte(`1`),
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}))
	}

	t.Run("removes expired unread entries", func(t *testing.T) {
		put("cache:user-1:old", 5*time.Millisecond)
		put("cache:user-1:fresh", time.Hour)
		time.Sleep(10 * time.Millisecond)

		removed, err := store.Sweep(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, ok, err := store.Fetch(ctx, "cache:user-1:fresh")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("keeps expired entries read since expiry", func(t *testing.T) {
		put("cache:user-1:wanted", 5*time.Millisecond)
		time.Sleep(10 * time.Millisecond)

		// Reading after expiry updates lastReadAt past ExpiresAt.
		_, ok, err := store.Fetch(ctx, "cache:user-1:wanted")
		require.NoError(t, err)
		require.True(t, ok)

		removed, err := store.Sweep(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}
