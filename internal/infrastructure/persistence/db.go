package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wavechat/client/internal/domain/shared"
	"github.com/wavechat/client/internal/infrastructure/config"
	"github.com/wavechat/client/internal/infrastructure/logger"
)

// Open opens the local sqlite store and migrates the schema
func Open(cfg config.StoreConfig, logCfg config.LogConfig, zapLogger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(logCfg.Level)),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store %q: %w", cfg.Path, err)
	}

	if err := db.AutoMigrate(&QueuedActionModel{}, &LocalStateModel{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	return db, nil
}

// mapStoreError converts driver-level failures into the domain taxonomy.
// A full disk or exhausted database page limit becomes ErrStorageExhausted so
// callers can run a pruning pass and retry once.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %s", shared.ErrStorageExhausted, err)
	}
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: %s", shared.ErrStorageExhausted, err)
	}
	return err
}
