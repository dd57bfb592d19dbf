package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// QueuedActionModel is the gorm model for durable queued actions
type QueuedActionModel struct {
	ID            string `gorm:"primaryKey"`
	OwnerUserID   string `gorm:"index;not null"`
	Kind          string `gorm:"not null"`
	Payload       string `gorm:"type:text;not null"`
	Status        string `gorm:"index;not null"`
	Attempts      int    `gorm:"not null;default:0"`
	FailureReason string
	EnqueuedAt    time.Time `gorm:"index"`
	CompletedAt   *time.Time
}

// TableName sets the table name for queued actions
func (QueuedActionModel) TableName() string {
	return "queued_actions"
}

// LocalStateModel is the gorm model for small durable key/value state
type LocalStateModel struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName sets the table name for local state
func (LocalStateModel) TableName() string {
	return "local_state"
}

// toModel converts a domain action to its storage representation
func toModel(a *syncdomain.QueuedAction) (*QueuedActionModel, error) {
	raw, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode action payload: %w", err)
	}
	return &QueuedActionModel{
		ID:            a.ID.String(),
		OwnerUserID:   a.OwnerUserID,
		Kind:          string(a.Kind),
		Payload:       string(raw),
		Status:        string(a.Status),
		Attempts:      a.Attempts,
		FailureReason: a.FailureReason,
		EnqueuedAt:    a.EnqueuedAt,
		CompletedAt:   a.CompletedAt,
	}, nil
}

// toDomain converts a storage row back to the domain action
func toDomain(m *QueuedActionModel) (*syncdomain.QueuedAction, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse action id %q: %w", m.ID, err)
	}
	payload, err := syncdomain.DecodePayload(syncdomain.ActionKind(m.Kind), []byte(m.Payload))
	if err != nil {
		return nil, fmt.Errorf("decode payload for action %s: %w", m.ID, err)
	}
	return &syncdomain.QueuedAction{
		ID:            id,
		OwnerUserID:   m.OwnerUserID,
		Kind:          syncdomain.ActionKind(m.Kind),
		Payload:       payload,
		Status:        syncdomain.ActionStatus(m.Status),
		Attempts:      m.Attempts,
		FailureReason: m.FailureReason,
		EnqueuedAt:    m.EnqueuedAt,
		CompletedAt:   m.CompletedAt,
	}, nil
}
