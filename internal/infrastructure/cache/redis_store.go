package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// physicalRetention is how long an entry stays readable past its logical
// expiry. Stale-while-revalidate needs expired entries to remain fetchable,
// so the redis TTL is retention on top of the logical window.
const physicalRetention = 24 * time.Hour

// RedisStore implements Store on Redis, used when several clients on one
// device (or kiosk) share a warm cache tier.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed cache store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put stores or overwrites an entry
func (s *RedisStore) Put(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	ttl := time.Until(entry.ExpiresAt) + physicalRetention
	return s.client.Set(ctx, key, raw, ttl).Err()
}

// Fetch returns the entry even when logically expired
func (s *RedisStore) Fetch(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

// Delete removes one key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// DeletePrefix removes every key under prefix via SCAN
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Sweep is a no-op: redis evicts physically through the retention TTL
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Ensure interface compliance
var _ Store = (*RedisStore)(nil)
