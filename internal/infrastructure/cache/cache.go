// Package cache provides the user-scoped local cache with
// stale-while-revalidate semantics: reads past expiry still return data so
// the UI can paint immediately, and a refresh trigger fires when online.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

const keyPrefix = "cache:"

// UserScopedCache namespaces every entry by the active owner. Switching the
// owner flips the entire visible keyspace atomically: no read can leak
// another user's data, even momentarily.
type UserScopedCache struct {
	store      Store
	bus        shared.EventPublisher
	online     func() bool
	logger     *zap.Logger
	defaultTTL time.Duration
	janitor    time.Duration

	mu    sync.RWMutex
	owner string

	stopOnce sync.Once
	stopCh   chan struct{}

	hits   int64
	misses int64
	statMu sync.Mutex
}

// CacheOption is a functional option for configuring the cache
type CacheOption func(*UserScopedCache)

// WithDefaultTTL sets the freshness window used when Set gets ttl<=0
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *UserScopedCache) {
		c.defaultTTL = ttl
	}
}

// WithJanitorInterval sets how often expired entries are swept
func WithJanitorInterval(interval time.Duration) CacheOption {
	return func(c *UserScopedCache) {
		c.janitor = interval
	}
}

// WithOnlineCheck wires the connectivity gate for stale-read refresh
// triggers. Without it, stale reads never emit refresh events.
func WithOnlineCheck(online func() bool) CacheOption {
	return func(c *UserScopedCache) {
		c.online = online
	}
}

// NewUserScopedCache creates the cache over a physical store
func NewUserScopedCache(store Store, bus shared.EventPublisher, logger *zap.Logger, opts ...CacheOption) *UserScopedCache {
	c := &UserScopedCache{
		store:      store,
		bus:        bus,
		online:     func() bool { return false },
		logger:     logger.Named("cache"),
		defaultTTL: 5 * time.Minute,
		janitor:    time.Minute,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.runJanitor()
	return c
}

// SetOwner switches the active owner and with it the visible keyspace
func (c *UserScopedCache) SetOwner(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != userID {
		c.logger.Debug("cache owner switched", zap.String("owner", userID))
	}
	c.owner = userID
}

// Owner returns the active owner, empty when unauthenticated
func (c *UserScopedCache) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// physicalKey derives the namespaced storage key for the active owner
func (c *UserScopedCache) physicalKey(owner, key string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, owner, key)
}

// Set stores value under the active owner's keyspace. ttl<=0 uses the
// default freshness window.
func (c *UserScopedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	owner := c.Owner()
	if owner == "" {
		return fmt.Errorf("cache set %q: %w", key, shared.ErrInvalidState)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %q: %w", key, err)
	}
	now := time.Now()
	return c.store.Put(ctx, c.physicalKey(owner, key), Entry{
		OwnerUserID: owner,
		Payload:     payload,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	})
}

// Get reads a value from the active owner's keyspace. With allowStale (the
// UI-facing default) an expired entry is still returned and, when online, a
// refresh-needed event fires so the scheduler revalidates it silently.
func (c *UserScopedCache) Get(ctx context.Context, key string, allowStale bool) (json.RawMessage, bool) {
	owner := c.Owner()
	if owner == "" {
		return nil, false
	}
	entry, ok, err := c.store.Fetch(ctx, c.physicalKey(owner, key))
	if err != nil {
		c.logger.Warn("cache fetch failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok || entry.OwnerUserID != owner {
		c.miss()
		return nil, false
	}

	if entry.Expired(time.Now()) {
		if !allowStale {
			c.miss()
			return nil, false
		}
		if c.online() {
			_ = c.bus.Publish(ctx, syncdomain.NewCacheRefreshNeededEvent(owner, key))
		}
	}
	c.hit()
	return entry.Payload, true
}

// GetInto unmarshals a cached value into out
func (c *UserScopedCache) GetInto(ctx context.Context, key string, allowStale bool, out any) bool {
	raw, ok := c.Get(ctx, key, allowStale)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Remove deletes one key from the active owner's keyspace
func (c *UserScopedCache) Remove(ctx context.Context, key string) error {
	owner := c.Owner()
	if owner == "" {
		return nil
	}
	return c.store.Delete(ctx, c.physicalKey(owner, key))
}

// ClearOwner purges every entry for userID. Called on logout and on user
// switch so accounts sharing a device never see each other's data.
func (c *UserScopedCache) ClearOwner(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	c.logger.Info("purging cache for owner", zap.String("owner", userID))
	return c.store.DeletePrefix(ctx, keyPrefix+userID+":")
}

// Stats returns hit/miss counters
func (c *UserScopedCache) Stats() (hits, misses int64) {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	return c.hits, c.misses
}

// Close stops the janitor
func (c *UserScopedCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *UserScopedCache) hit() {
	c.statMu.Lock()
	c.hits++
	c.statMu.Unlock()
}

func (c *UserScopedCache) miss() {
	c.statMu.Lock()
	c.misses++
	c.statMu.Unlock()
}

// runJanitor periodically sweeps expired, unrequested entries
func (c *UserScopedCache) runJanitor() {
	ticker := time.NewTicker(c.janitor)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			removed, err := c.store.Sweep(context.Background(), time.Now())
			if err != nil {
				c.logger.Warn("cache sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				c.logger.Debug("cache swept", zap.Int("removed", removed))
			}
		}
	}
}
