package sync

import (
	"context"

	"github.com/google/uuid"
)

// QueueRepository is the durable store for queued actions. Implementations
// must index on status and owner so PendingFor never scans terminal rows.
type QueueRepository interface {
	Save(ctx context.Context, action *QueuedAction) error
	Update(ctx context.Context, action *QueuedAction) error
	FindByID(ctx context.Context, id uuid.UUID) (*QueuedAction, error)
	// PendingFor returns pending actions for one owner, oldest first.
	PendingFor(ctx context.Context, ownerUserID string) ([]*QueuedAction, error)
	// FindByStatus lists actions for one owner filtered by status.
	FindByStatus(ctx context.Context, ownerUserID string, status ActionStatus) ([]*QueuedAction, error)
	CountPending(ctx context.Context, ownerUserID string) (int64, error)
	// PruneTerminal deletes up to limit oldest terminal rows, freeing
	// space when the local store reports exhaustion.
	PruneTerminal(ctx context.Context, limit int) (int64, error)
}

// StateRepository is the durable key/value store for small local state:
// stored credentials, the device identifier and the mirrored auth/network
// snapshots that survive restarts.
type StateRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
