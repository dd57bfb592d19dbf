package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// GormQueueRepository implements sync.QueueRepository using GORM
type GormQueueRepository struct {
	db *gorm.DB
}

// NewGormQueueRepository creates a new GormQueueRepository
func NewGormQueueRepository(db *gorm.DB) *GormQueueRepository {
	return &GormQueueRepository{db: db}
}

// Save persists a new action
func (r *GormQueueRepository) Save(ctx context.Context, action *syncdomain.QueuedAction) error {
	model, err := toModel(action)
	if err != nil {
		return err
	}
	return mapStoreError(r.db.WithContext(ctx).Create(model).Error)
}

// Update overwrites an existing action row
func (r *GormQueueRepository) Update(ctx context.Context, action *syncdomain.QueuedAction) error {
	model, err := toModel(action)
	if err != nil {
		return err
	}
	return mapStoreError(r.db.WithContext(ctx).Save(model).Error)
}

// FindByID finds an action by its ID
func (r *GormQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.QueuedAction, error) {
	var model QueuedActionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id.String()).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return toDomain(&model)
}

// PendingFor returns pending actions for one owner, oldest first
func (r *GormQueueRepository) PendingFor(ctx context.Context, ownerUserID string) ([]*syncdomain.QueuedAction, error) {
	return r.FindByStatus(ctx, ownerUserID, syncdomain.ActionStatusPending)
}

// FindByStatus lists actions for one owner filtered by status
func (r *GormQueueRepository) FindByStatus(ctx context.Context, ownerUserID string, status syncdomain.ActionStatus) ([]*syncdomain.QueuedAction, error) {
	var models []QueuedActionModel
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND status = ?", ownerUserID, string(status)).
		Order("enqueued_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, mapStoreError(err)
	}

	actions := make([]*syncdomain.QueuedAction, 0, len(models))
	for i := range models {
		action, err := toDomain(&models[i])
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// CountPending counts pending actions for one owner
func (r *GormQueueRepository) CountPending(ctx context.Context, ownerUserID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&QueuedActionModel{}).
		Where("owner_user_id = ? AND status = ?", ownerUserID, string(syncdomain.ActionStatusPending)).
		Count(&count).Error
	return count, mapStoreError(err)
}

// PruneTerminal deletes up to limit oldest terminal rows
func (r *GormQueueRepository) PruneTerminal(ctx context.Context, limit int) (int64, error) {
	// Subquery because sqlite rejects DELETE ... ORDER BY LIMIT directly
	sub := r.db.WithContext(ctx).
		Model(&QueuedActionModel{}).
		Select("id").
		Where("status IN ?", []string{
			string(syncdomain.ActionStatusSent),
			string(syncdomain.ActionStatusFailed),
		}).
		Order("enqueued_at ASC").
		Limit(limit)

	res := r.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Delete(&QueuedActionModel{})
	return res.RowsAffected, mapStoreError(res.Error)
}

// Ensure interface compliance
var _ syncdomain.QueueRepository = (*GormQueueRepository)(nil)
