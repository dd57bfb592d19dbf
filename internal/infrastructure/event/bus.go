package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/wavechat/client/internal/domain/shared"
)

// Bus implements shared.EventBus with in-memory pub/sub. Delivery is
// synchronous and last-write-wins: handlers see the latest state, there is
// no queued event log.
type Bus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
}

// NewBus creates a new in-memory event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event"),
	}
}

// Publish delivers events to all registered handlers synchronously
func (b *Bus) Publish(ctx context.Context, events ...shared.Event) error {
	for _, ev := range events {
		for _, handler := range b.registry.Handlers(ev.EventType()) {
			if err := b.dispatch(ctx, handler, ev); err != nil {
				// Log and continue with other handlers
				b.logger.Error("handler failed to process event",
					zap.String("event_type", ev.EventType()),
					zap.String("event_id", ev.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *Bus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *Bus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// dispatch safely delivers an event to one handler
func (b *Bus) dispatch(ctx context.Context, handler shared.EventHandler, ev shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", ev.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, ev)
}

// Ensure Bus implements shared.EventBus
var _ shared.EventBus = (*Bus)(nil)
