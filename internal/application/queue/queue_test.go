package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/infrastructure/config"
	"github.com/wavechat/client/internal/infrastructure/persistence"
)

// stubSender scripts per-call outcomes and records dispatched payloads
type stubSender struct {
	mu       sync.Mutex
	outcomes map[syncdomain.ActionKind]error
	sent     []syncdomain.ActionPayload
}

func (s *stubSender) SendAction(ctx context.Context, token string, payload syncdomain.ActionPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.outcomes[payload.ActionKind()]; err != nil {
		return err
	}
	s.sent = append(s.sent, payload)
	return nil
}

// stubSessions returns a fixed session
type stubSessions struct {
	mu      sync.Mutex
	session *syncdomain.Session
}

func (s *stubSessions) Session() *syncdomain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *stubSessions) set(session *syncdomain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

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

func validatedSession(userID string) *syncdomain.Session {
	return &syncdomain.Session{Token: "tok-" + userID, UserID: userID, Validated: true}
}

func newTestQueue(t *testing.T) (*Queue, *stubSender, *stubSessions, *recordingBus, syncdomain.QueueRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&persistence.QueuedActionModel{}, &persistence.LocalStateModel{}))

	repo := persistence.NewGormQueueRepository(db)
	sender := &stubSender{outcomes: map[syncdomain.ActionKind]error{}}
	sessions := &stubSessions{}
	bus := &recordingBus{}
	cfg := config.QueueConfig{MaxAttempts: 3, PruneBatchSize: 10}
	q := NewQueue(repo, sender, sessions, bus, cfg, zap.NewNop())
	return q, sender, sessions, bus, repo
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a session", func(t *testing.T) {
		q, _, _, _, _ := newTestQueue(t)
		_, err := q.Enqueue(ctx, syncdomain.MessageSendPayload{ConversationID: "c1", Content: "hi"})
		require.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("stamps the current owner", func(t *testing.T) {
		q, _, sessions, _, repo := newTestQueue(t)
		sessions.set(validatedSession("user-1"))

		id, err := q.Enqueue(ctx, syncdomain.MessageSendPayload{ConversationID: "c1", Content: "hi"})
		require.NoError(t, err)

		action, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "user-1", action.OwnerUserID)
		assert.Equal(t, syncdomain.ActionStatusPending, action.Status)
	})
}

func TestDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("sends pending actions oldest first", func(t *testing.T) {
		q, sender, sessions, bus, repo := newTestQueue(t)
		sessions.set(validatedSession("user-1"))

		first, err := q.Enqueue(ctx, syncdomain.MessageSendPayload{ConversationID: "c1", Content: "one"})
		require.NoError(t, err)
		second, err := q.Enqueue(ctx, syncdomain.StatusUpdatePayload{Status: "away"})
		require.NoError(t, err)

		require.NoError(t, q.Drain(ctx))

		require.Len(t, sender.sent, 2)
		assert.Equal(t, syncdomain.KindMessageSend, sender.sent[0].ActionKind())
		assert.Equal(t, syncdomain.KindStatusUpdate, sender.sent[1].ActionKind())

		a, err := repo.FindByID(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.ActionStatusSent, a.Status)
		a, err = repo.FindByID(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.ActionStatusSent, a.Status)

		drained := bus.byType(syncdomain.EventQueueDrained)
		require.Len(t, drained, 1)
		summary := drained[0].(*syncdomain.QueueDrainedEvent)
		assert.Equal(t, 2, summary.Sent)
		assert.Zero(t, summary.Requeued)
		assert.Zero(t, summary.Failed)
	})

	t.Run("skips unvalidated sessions", func(t *testing.T) {
		q, sender, sessions, _, _ := newTestQueue(t)
		sessions.set(validatedSession("user-1"))
		_, err := q.Enqueue(ctx, syncdomain.StatusUpdatePayload{Status: "away"})
		require.NoError(t, err)

		degraded := validatedSession("user-1")
		degraded.Validated = false
		sessions.set(degraded)

		require.NoError(t, q.Drain(ctx))
		assert.Empty(t, sender.sent)
	})

	t.Run("never replays another owner's actions", func(t *testing.T) {
		q, sender, sessions, _, repo := newTestQueue(t)
		sessions.set(validatedSession("user-1"))
		id, err := q.Enqueue(ctx, syncdomain.MessageSendPayload{ConversationID: "c1", Content: "hi"})
		require.NoError(t, err)

		// Account switched after enqueue.
		sessions.set(validatedSession("user-2"))

		require.NoError(t, q.Drain(ctx))
		assert.Empty(t, sender.sent)

		action, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.ActionStatusPending, action.Status, "stays queued for its owner")
	})

	t.Run("transient failure requeues and stops the pass", func(t *testing.T) {
		q, sender, sessions, bus, repo := newTestQueue(t)
		sessions.set(validatedSession("user-1"))
		sender.outcomes[syncdomain.KindMessageSend] = shared.ErrTransientNetwork

		blocked, err := q.Enqueue(ctx, syncdomain.MessageSendPayload{ConversationID: "c1", Content: "hi"})
		require.NoError(t, err)
		_, err = q.Enqueue(ctx, syncdomain.StatusUpdatePayload{Status: "away"})
		require.NoError(t, err)

		require.NoError(t, q.Drain(ctx))

		assert.Empty(t, sender.sent, "pass stopped before the second action")
		action, err := repo.FindByID(ctx, blocked)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.ActionStatusPending, action.Status)
		assert.Equal(t, 1, action.Attempts)

		summary := bus.byType(syncdomain.EventQueueDrained)[0].(*syncdomain.QueueDrainedEvent)
		assert.Equal(t, 1, summary.Requeued)
	})

	t.Run("retry ceiling fails the action terminally", func(t *testing.T) {
		q, sender, sessions, bus, repo := newTestQueue(t)
		sessions.set(validatedSession("user-1"))
		sender.outcomes[syncdomain.KindFriendRequest] = shared.ErrInvalidInput

		id, err := q.Enqueue(ctx, syncdomain.FriendRequestPayload{TargetUserID: "u9"})
		require.NoError(t, err)

		// MaxAttempts is 3 in the test config.
		for i := 0; i < 3; i++ {
			require.NoError(t, q.Drain(ctx))
		}

		action, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.ActionStatusFailed, action.Status)
		assert.Equal(t, 3, action.Attempts)

		failedEvents := bus.byType(syncdomain.EventActionFailed)
		require.Len(t, failedEvents, 1)

		// A further drain has nothing left to do.
		require.NoError(t, q.Drain(ctx))
		assert.Empty(t, sender.sent)
	})
}

func TestManualTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("mark sent", func(t *testing.T) {
		q, _, sessions, _, repo := newTestQueue(t)
		sessions.set(validatedSession("user-1"))
		id, err := q.Enqueue(ctx, syncdomain.StatusUpdatePayload{Status: "busy"})
		require.NoError(t, err)

		require.NoError(t, q.MarkSent(ctx, id))
		action, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.ActionStatusSent, action.Status)

		require.ErrorIs(t, q.MarkSent(ctx, id), shared.ErrInvalidState)
	})

	t.Run("mark failed is immediately terminal", func(t *testing.T) {
		q, _, sessions, _, repo := newTestQueue(t)
		sessions.set(validatedSession("user-1"))
		id, err := q.Enqueue(ctx, syncdomain.StatusUpdatePayload{Status: "busy"})
		require.NoError(t, err)

		require.NoError(t, q.MarkFailed(ctx, id, "user cancelled"))
		action, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.ActionStatusFailed, action.Status)
		assert.Equal(t, "user cancelled", action.FailureReason)
	})
}

func TestListAndCount(t *testing.T) {
	ctx := context.Background()
	q, _, sessions, _, _ := newTestQueue(t)
	sessions.set(validatedSession("user-1"))

	id, err := q.Enqueue(ctx, syncdomain.StatusUpdatePayload{Status: "busy"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, syncdomain.MessageSendPayload{ConversationID: "c1", Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, q.MarkSent(ctx, id))

	pending, err := q.List(ctx, syncdomain.ActionStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	sent, err := q.List(ctx, syncdomain.ActionStatusSent)
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
