package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wavechat/client/internal/domain/shared"
)

// ActionKind identifies a replayable mutation type
type ActionKind string

const (
	KindMessageSend   ActionKind = "message.send"
	KindStatusUpdate  ActionKind = "status.update"
	KindFriendRequest ActionKind = "friend.request"
	KindCallLog       ActionKind = "call.log"
	KindListingUpdate ActionKind = "listing.update"
)

// ActionStatus represents the lifecycle state of a queued action
type ActionStatus string

const (
	ActionStatusPending ActionStatus = "pending"
	ActionStatusSent    ActionStatus = "sent"
	ActionStatusFailed  ActionStatus = "failed"
)

// MaxAttempts is the retry ceiling; beyond it an action fails terminally.
const MaxAttempts = 5

// ActionPayload is the typed payload of a queued action. Each kind carries
// its own variant; dispatch is an exhaustive switch over the kind.
type ActionPayload interface {
	ActionKind() ActionKind
}

// MessageSendPayload replays a chat message send
type MessageSendPayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ClientRef      string `json:"client_ref,omitempty"`
}

// ActionKind implements ActionPayload
func (MessageSendPayload) ActionKind() ActionKind { return KindMessageSend }

// StatusUpdatePayload replays a presence/status change
type StatusUpdatePayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ActionKind implements ActionPayload
func (StatusUpdatePayload) ActionKind() ActionKind { return KindStatusUpdate }

// FriendRequestPayload replays an outgoing friend request
type FriendRequestPayload struct {
	TargetUserID string `json:"target_user_id"`
	Note         string `json:"note,omitempty"`
}

// ActionKind implements ActionPayload
func (FriendRequestPayload) ActionKind() ActionKind { return KindFriendRequest }

// CallLogPayload replays a call history record
type CallLogPayload struct {
	PeerUserID string        `json:"peer_user_id"`
	Direction  string        `json:"direction"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// ActionKind implements ActionPayload
func (CallLogPayload) ActionKind() ActionKind { return KindCallLog }

// ListingUpdatePayload replays a marketplace listing change
type ListingUpdatePayload struct {
	ListingID string          `json:"listing_id"`
	Title     string          `json:"title,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// ActionKind implements ActionPayload
func (ListingUpdatePayload) ActionKind() ActionKind { return KindListingUpdate }

// DecodePayload unmarshals raw JSON into the payload variant for kind
func DecodePayload(kind ActionKind, raw []byte) (ActionPayload, error) {
	switch kind {
	case KindMessageSend:
		var p MessageSendPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindStatusUpdate:
		var p StatusUpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindFriendRequest:
		var p FriendRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindCallLog:
		var p CallLogPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindListingUpdate:
		var p ListingUpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}

// QueuedAction is a durable pending mutation created while offline.
// Ownership is immutable: an action is replayed only under the session
// that created it. Terminal statuses (sent, failed) never mutate again.
type QueuedAction struct {
	ID            uuid.UUID
	OwnerUserID   string
	Kind          ActionKind
	Payload       ActionPayload
	Status        ActionStatus
	Attempts      int
	FailureReason string
	EnqueuedAt    time.Time
	CompletedAt   *time.Time
}

// NewQueuedAction creates a pending action owned by ownerUserID
func NewQueuedAction(ownerUserID string, payload ActionPayload) *QueuedAction {
	return &QueuedAction{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		Kind:        payload.ActionKind(),
		Payload:     payload,
		Status:      ActionStatusPending,
		EnqueuedAt:  time.Now(),
	}
}

// Terminal reports whether the action reached a final status
func (a *QueuedAction) Terminal() bool {
	return a.Status == ActionStatusSent || a.Status == ActionStatusFailed
}

// MarkSent transitions pending→sent
func (a *QueuedAction) MarkSent() error {
	if a.Status != ActionStatusPending {
		return fmt.Errorf("mark sent from %s: %w", a.Status, shared.ErrInvalidState)
	}
	now := time.Now()
	a.Status = ActionStatusSent
	a.CompletedAt = &now
	return nil
}

// RecordFailure increments the attempt counter and, once the retry ceiling
// is reached, transitions pending→failed terminally. ceiling<=0 falls back
// to MaxAttempts.
func (a *QueuedAction) RecordFailure(reason string, ceiling int) error {
	if a.Status != ActionStatusPending {
		return fmt.Errorf("record failure from %s: %w", a.Status, shared.ErrInvalidState)
	}
	if ceiling <= 0 {
		ceiling = MaxAttempts
	}
	a.Attempts++
	a.FailureReason = reason
	if a.Attempts >= ceiling {
		now := time.Now()
		a.Status = ActionStatusFailed
		a.CompletedAt = &now
	}
	return nil
}

// OwnedBy reports whether the action belongs to userID
func (a *QueuedAction) OwnedBy(userID string) bool {
	return a.OwnerUserID == userID
}
