package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// GormStateRepository implements sync.StateRepository using GORM
type GormStateRepository struct {
	db *gorm.DB
}

// NewGormStateRepository creates a new GormStateRepository
func NewGormStateRepository(db *gorm.DB) *GormStateRepository {
	return &GormStateRepository{db: db}
}

// Get returns the value for key, or shared.ErrNotFound
func (r *GormStateRepository) Get(ctx context.Context, key string) (string, error) {
	var model LocalStateModel
	if err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		return "", mapStoreError(err)
	}
	return model.Value, nil
}

// Set upserts the value for key
func (r *GormStateRepository) Set(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&LocalStateModel{Key: key, Value: value}).Error
	return mapStoreError(err)
}

// Delete removes key; deleting a missing key is not an error
func (r *GormStateRepository) Delete(ctx context.Context, key string) error {
	return mapStoreError(r.db.WithContext(ctx).Delete(&LocalStateModel{}, "key = ?", key).Error)
}

// Ensure interface compliance
var _ syncdomain.StateRepository = (*GormStateRepository)(nil)
