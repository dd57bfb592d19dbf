package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a signal emitted by one sync component and consumed by
// others (and by the UI layer) without direct coupling.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent creates the embedded base for a typed event
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// EventID returns the unique event identifier
func (e *BaseEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// EventHandler handles events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event Event) error
	// EventTypes returns the event types this handler is interested in.
	// An empty slice means the handler receives all events.
	EventTypes() []string
}

// EventPublisher publishes events
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// EventSubscriber subscribes to events
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types.
	// If no event types are provided, the handler receives all events.
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from the subscription list
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// HandlerFunc adapts a plain function to EventHandler for a fixed set of
// event types.
type HandlerFunc struct {
	Types []string
	Fn    func(ctx context.Context, event Event) error
}

// Handle invokes the wrapped function
func (h *HandlerFunc) Handle(ctx context.Context, event Event) error {
	return h.Fn(ctx, event)
}

// EventTypes returns the subscribed event types
func (h *HandlerFunc) EventTypes() []string {
	return h.Types
}
