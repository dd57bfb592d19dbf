package sync

import "github.com/wavechat/client/internal/domain/shared"

// Event types emitted by the sync core. The UI layer and the components
// subscribe to these through the event bus; delivery is last-write-wins,
// there is no replay log.
const (
	EventConnectivityChanged = "connectivity.changed"
	EventAuthReady           = "auth.ready"
	EventBackendReady        = "backend.ready"
	EventCacheDataReady      = "cache.data_ready"
	EventCacheRefreshNeeded  = "cache.refresh_needed"
	EventQueueDrained        = "queue.drained"
	EventActionFailed        = "queue.action_failed"
	EventSessionRedirect     = "session.redirect"
)

// ConnectivityChangedEvent fires only on state transitions, not every probe
type ConnectivityChangedEvent struct {
	shared.BaseEvent
	Previous ConnectivitySnapshot `json:"previous"`
	Current  ConnectivitySnapshot `json:"current"`
}

// NewConnectivityChangedEvent creates a connectivity transition event
func NewConnectivityChangedEvent(prev, cur ConnectivitySnapshot) *ConnectivityChangedEvent {
	return &ConnectivityChangedEvent{
		BaseEvent: shared.NewBaseEvent(EventConnectivityChanged),
		Previous:  prev,
		Current:   cur,
	}
}

// AuthReadyEvent fires once a validated session exists
type AuthReadyEvent struct {
	shared.BaseEvent
	UserID    string `json:"user_id"`
	Validated bool   `json:"validated"`
}

// NewAuthReadyEvent creates an auth readiness event
func NewAuthReadyEvent(userID string, validated bool) *AuthReadyEvent {
	return &AuthReadyEvent{
		BaseEvent: shared.NewBaseEvent(EventAuthReady),
		UserID:    userID,
		Validated: validated,
	}
}

// BackendReadyEvent fires when the auth route is re-affirmed reachable
type BackendReadyEvent struct {
	shared.BaseEvent
}

// NewBackendReadyEvent creates a backend readiness event
func NewBackendReadyEvent() *BackendReadyEvent {
	return &BackendReadyEvent{BaseEvent: shared.NewBaseEvent(EventBackendReady)}
}

// CacheDataReadyEvent fires after a background refresh wrote fresh data
type CacheDataReadyEvent struct {
	shared.BaseEvent
	OwnerUserID string `json:"owner_user_id"`
	Key         string `json:"key"`
}

// NewCacheDataReadyEvent creates a cache data event
func NewCacheDataReadyEvent(ownerUserID, key string) *CacheDataReadyEvent {
	return &CacheDataReadyEvent{
		BaseEvent:   shared.NewBaseEvent(EventCacheDataReady),
		OwnerUserID: ownerUserID,
		Key:         key,
	}
}

// CacheRefreshNeededEvent fires when a stale entry was served while online
type CacheRefreshNeededEvent struct {
	shared.BaseEvent
	OwnerUserID string `json:"owner_user_id"`
	Key         string `json:"key"`
}

// NewCacheRefreshNeededEvent creates a stale-read refresh trigger
func NewCacheRefreshNeededEvent(ownerUserID, key string) *CacheRefreshNeededEvent {
	return &CacheRefreshNeededEvent{
		BaseEvent:   shared.NewBaseEvent(EventCacheRefreshNeeded),
		OwnerUserID: ownerUserID,
		Key:         key,
	}
}

// QueueDrainedEvent summarizes a drain pass
type QueueDrainedEvent struct {
	shared.BaseEvent
	OwnerUserID string `json:"owner_user_id"`
	Sent        int    `json:"sent"`
	Requeued    int    `json:"requeued"`
	Failed      int    `json:"failed"`
}

// NewQueueDrainedEvent creates a drain summary event
func NewQueueDrainedEvent(ownerUserID string, sent, requeued, failed int) *QueueDrainedEvent {
	return &QueueDrainedEvent{
		BaseEvent:   shared.NewBaseEvent(EventQueueDrained),
		OwnerUserID: ownerUserID,
		Sent:        sent,
		Requeued:    requeued,
		Failed:      failed,
	}
}

// ActionFailedEvent fires when an action exceeds the retry ceiling.
// The UI surfaces it as a toast naming the action.
type ActionFailedEvent struct {
	shared.BaseEvent
	ActionID string     `json:"action_id"`
	Kind     ActionKind `json:"kind"`
	Reason   string     `json:"reason"`
}

// NewActionFailedEvent creates a terminal action failure event
func NewActionFailedEvent(actionID string, kind ActionKind, reason string) *ActionFailedEvent {
	return &ActionFailedEvent{
		BaseEvent: shared.NewBaseEvent(EventActionFailed),
		ActionID:  actionID,
		Kind:      kind,
		Reason:    reason,
	}
}

// SessionRedirectEvent tells the UI shell to navigate to the entry page
type SessionRedirectEvent struct {
	shared.BaseEvent
	Reason string `json:"reason"`
	Target string `json:"target"`
}

// NewSessionRedirectEvent creates a redirect signal pointing the UI at target
func NewSessionRedirectEvent(reason, target string) *SessionRedirectEvent {
	return &SessionRedirectEvent{
		BaseEvent: shared.NewBaseEvent(EventSessionRedirect),
		Reason:    reason,
		Target:    target,
	}
}
