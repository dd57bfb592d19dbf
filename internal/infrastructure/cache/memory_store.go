package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryEntry wraps an Entry with its last read time for the janitor's
// not-re-requested rule.
type memoryEntry struct {
	entry      Entry
	lastReadAt time.Time
}

// MemoryStore implements Store with a sync.Map, the default backend
type MemoryStore struct {
	entries sync.Map // map[string]*memoryEntry
	mu      sync.Mutex
}

// NewMemoryStore creates an in-memory cache store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Put stores or overwrites an entry
func (s *MemoryStore) Put(ctx context.Context, key string, entry Entry) error {
	s.entries.Store(key, &memoryEntry{entry: entry, lastReadAt: time.Now()})
	return nil
}

// Fetch returns the entry even when expired
func (s *MemoryStore) Fetch(ctx context.Context, key string) (Entry, bool, error) {
	value, ok := s.entries.Load(key)
	if !ok {
		return Entry{}, false, nil
	}
	me := value.(*memoryEntry)
	s.mu.Lock()
	me.lastReadAt = time.Now()
	s.mu.Unlock()
	return me.entry, true, nil
}

// Delete removes one key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

// DeletePrefix removes every key under prefix
func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	s.entries.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			s.entries.Delete(key)
		}
		return true
	})
	return nil
}

// Sweep removes entries that are expired and have not been read since
// expiry, bounding storage growth without evicting stale-but-wanted data.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	s.entries.Range(func(key, value any) bool {
		me := value.(*memoryEntry)
		s.mu.Lock()
		lastRead := me.lastReadAt
		s.mu.Unlock()
		if me.entry.Expired(now) && lastRead.Before(me.entry.ExpiresAt) {
			s.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

// Ensure interface compliance
var _ Store = (*MemoryStore)(nil)
