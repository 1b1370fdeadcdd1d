package bootstrap

import (
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/grant-matcher/internal/config"
	"github.com/jonesrussell/grant-matcher/internal/logger"
)

// SetupRedis creates a Redis client when Redis is enabled. Returns nil when
// disabled; the rate limiter and event publisher then fall back to in-process
// behaviour.
func SetupRedis(cfg *config.Config, log logger.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		log.Info("Redis disabled, using in-process rate limiter state")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	log.Info("Redis client configured", logger.String("addr", cfg.Redis.Addr))
	return client
}
