package cache

import (
	"context"
	"time"
)

// Entry is a cached value together with its freshness window. Entries may
// be served past ExpiresAt (stale-while-revalidate); physical removal is
// the janitor's job, not the reader's.
type Entry struct {
	OwnerUserID string    `json:"owner_user_id"`
	Payload     []byte    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its freshness window
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is a physical key/value backend for the user-scoped cache.
// Implementations must keep expired entries readable until swept.
type Store interface {
	Put(ctx context.Context, key string, entry Entry) error
	// Fetch returns the entry even when expired; ok=false only when the
	// key is physically absent.
	Fetch(ctx context.Context, key string) (Entry, bool, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key under prefix, used on owner purge
	DeletePrefix(ctx context.Context, prefix string) error
	// Sweep physically removes entries that expired and have not been
	// re-requested since. Returns the number of removed entries.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
