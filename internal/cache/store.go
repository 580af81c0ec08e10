package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Store is a byte-valued key/value backend with its own expiry and capacity
// policy. A nil or empty value is a valid entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Stats() map[string]interface{}
	Close() error
}

// Config contains cache configuration.
type Config struct {
	Type        string // memory, bigcache, redis or disabled
	MaxEntries  int
	TTL         time.Duration
	SizeMB      int
	RedisAddr   string
	RedisPrefix string
}

// NewStore creates a store based on the cache type.
func NewStore(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		log.Info("Using memory tile cache", zap.Int("max_entries", cfg.MaxEntries), zap.Duration("ttl", cfg.TTL))
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL), nil
	case "bigcache":
		log.Info("Using bigcache tile cache", zap.Int("size_mb", cfg.SizeMB), zap.Duration("ttl", cfg.TTL))
		return NewBigStore(ctx, cfg.SizeMB, cfg.TTL)
	case "redis":
		log.Info("Using redis tile cache", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPrefix, cfg.TTL)
	case "disabled":
		log.Info("Tile cache disabled")
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, bigcache, redis, disabled)", cfg.Type)
	}
}
