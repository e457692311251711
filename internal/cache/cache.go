package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"keystone-tracker/internal/config"
)

// Cache is the TTL key-value store shared by the credential cache and
// the report cache. Every write replaces a whole entry; no partial
// updates exist, so plain get/set/mget/del is the entire contract.
// A zero TTL means the entry persists until deleted or flushed.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	MGet(ctx context.Context, keys ...string) ([]*string, error)
	Del(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}

// New returns the redis-backed cache when REDIS_URL is configured and
// the in-process cache otherwise.
func New(cfg *config.Config, logger zerolog.Logger) (Cache, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, using in-process cache")
		return NewMemory(), nil
	}
	return NewRedis(cfg.RedisURL, logger)
}
