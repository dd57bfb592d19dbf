package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wavechat/client/internal/infrastructure/config"
)

// NewStoreFromConfig builds the physical cache backend chosen by config
func NewStoreFromConfig(cfg *config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
