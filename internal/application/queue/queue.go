// Package queue is the durable offline action queue: mutations attempted
// while the backend is unreachable are stored per owner and replayed
// exactly once when connectivity returns.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/infrastructure/config"
	"github.com/wavechat/client/internal/infrastructure/logger"
)

// Sender replays one action against the backend
type Sender interface {
	SendAction(ctx context.Context, token string, payload syncdomain.ActionPayload) error
}

// SessionSource exposes the active session to the queue
type SessionSource interface {
	Session() *syncdomain.Session
}

// Queue coordinates enqueueing and draining of offline actions
type Queue struct {
	repo     syncdomain.QueueRepository
	sender   Sender
	sessions SessionSource
	bus      shared.EventPublisher
	cfg      config.QueueConfig
	logger   *zap.Logger

	// drainMu serializes drain passes: no action is ever dispatched
	// twice concurrently.
	drainMu sync.Mutex
}

// NewQueue creates the offline action queue service
func NewQueue(repo syncdomain.QueueRepository, sender Sender, sessions SessionSource, bus shared.EventPublisher, cfg config.QueueConfig, logger *zap.Logger) *Queue {
	return &Queue{
		repo:     repo,
		sender:   sender,
		sessions: sessions,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.Named("queue"),
	}
}

// Enqueue stores an action stamped with the current authenticated owner
func (q *Queue) Enqueue(ctx context.Context, payload syncdomain.ActionPayload) (uuid.UUID, error) {
	session := q.sessions.Session()
	if session == nil || session.UserID == "" {
		return uuid.Nil, fmt.Errorf("enqueue without session: %w", shared.ErrInvalidState)
	}

	action := syncdomain.NewQueuedAction(session.UserID, payload)
	if err := q.saveWithPrune(ctx, action); err != nil {
		return uuid.Nil, err
	}

	fields := []zap.Field{
		zap.String("action_id", action.ID.String()),
		zap.String("kind", string(action.Kind)),
		zap.String("owner", action.OwnerUserID),
	}
	if id := logger.GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	q.logger.Info("action enqueued", fields...)
	return action.ID, nil
}

// saveWithPrune persists the action; on storage exhaustion it prunes
// terminal rows once and retries the write a single time. A write that
// still fails is dropped and logged, never panics.
func (q *Queue) saveWithPrune(ctx context.Context, action *syncdomain.QueuedAction) error {
	err := q.repo.Save(ctx, action)
	if !shared.IsStorageExhausted(err) {
		return err
	}

	pruned, pruneErr := q.repo.PruneTerminal(ctx, q.cfg.PruneBatchSize)
	if pruneErr != nil {
		q.logger.Error("prune after storage exhaustion failed", zap.Error(pruneErr))
	} else {
		q.logger.Warn("local store exhausted, pruned terminal actions", zap.Int64("pruned", pruned))
	}

	if err := q.repo.Save(ctx, action); err != nil {
		q.logger.Error("action write dropped after prune",
			zap.String("kind", string(action.Kind)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Drain replays pending actions belonging to the current owner, oldest
// first and strictly sequentially. Only the scheduler calls this, and only
// while the backend is confirmed reachable.
func (q *Queue) Drain(ctx context.Context) error {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	session := q.sessions.Session()
	if session == nil || !session.Validated {
		return nil
	}
	owner := session.UserID

	pending, err := q.repo.PendingFor(ctx, owner)
	if err != nil {
		return fmt.Errorf("load pending actions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	var sent, requeued, failed int
	for _, action := range pending {
		// Re-check ownership against the live session: an account
		// switch mid-drain must not replay another user's actions.
		current := q.sessions.Session()
		if current == nil || !action.OwnedBy(current.UserID) {
			q.logger.Warn("skipping action for inactive owner",
				zap.String("action_id", action.ID.String()),
				zap.String("owner", action.OwnerUserID),
			)
			continue
		}

		sendErr := q.sender.SendAction(ctx, current.Token, action.Payload)
		if sendErr == nil {
			if err := action.MarkSent(); err != nil {
				return err
			}
			if err := q.repo.Update(ctx, action); err != nil {
				return err
			}
			sent++
			continue
		}

		if err := action.RecordFailure(sendErr.Error(), q.cfg.MaxAttempts); err != nil {
			return err
		}
		if err := q.repo.Update(ctx, action); err != nil {
			return err
		}

		if action.Status == syncdomain.ActionStatusFailed {
			failed++
			q.logger.Warn("action failed terminally",
				zap.String("action_id", action.ID.String()),
				zap.String("kind", string(action.Kind)),
				zap.Int("attempts", action.Attempts),
			)
			_ = q.bus.Publish(ctx, syncdomain.NewActionFailedEvent(action.ID.String(), action.Kind, action.FailureReason))
		} else {
			requeued++
		}

		// Connectivity collapsed mid-pass: stop here, the rest stays
		// pending for the next cycle.
		if shared.IsTransient(sendErr) || errors.Is(sendErr, shared.ErrBackendDown) {
			break
		}
	}

	q.logger.Info("drain pass complete",
		zap.String("owner", owner),
		zap.Int("sent", sent),
		zap.Int("requeued", requeued),
		zap.Int("failed", failed),
	)
	_ = q.bus.Publish(ctx, syncdomain.NewQueueDrainedEvent(owner, sent, requeued, failed))
	return nil
}

// MarkSent manually finalizes an action, used by the local API
func (q *Queue) MarkSent(ctx context.Context, id uuid.UUID) error {
	action, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := action.MarkSent(); err != nil {
		return err
	}
	return q.repo.Update(ctx, action)
}

// MarkFailed manually fails an action terminally, used by the local API
func (q *Queue) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	action, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := action.RecordFailure(reason, 1); err != nil {
		return err
	}
	return q.repo.Update(ctx, action)
}

// List returns the current owner's actions filtered by status
func (q *Queue) List(ctx context.Context, status syncdomain.ActionStatus) ([]*syncdomain.QueuedAction, error) {
	session := q.sessions.Session()
	if session == nil {
		return nil, shared.ErrInvalidState
	}
	return q.repo.FindByStatus(ctx, session.UserID, status)
}

// PendingCount returns the number of pending actions for the current owner
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	session := q.sessions.Session()
	if session == nil {
		return 0, nil
	}
	return q.repo.CountPending(ctx, session.UserID)
}
