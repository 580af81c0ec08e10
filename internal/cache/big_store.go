package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BigStore keeps tiles in a sharded, byte-bounded bigcache. Expired entries
// are dropped by the clean window, so a tile may outlive its TTL by up to
// TTL/2.
type BigStore struct {
	cache *bigcache.BigCache
}

const (
	maxBigShards = 256
	// minShardBytes keeps room for several maximum-size tiles per shard.
	minShardBytes = 256 * 1024
	maxEntrySize  = 64 * 1024
)

// bigShards returns the largest power of two, up to maxBigShards, that keeps
// every shard of a sizeMB cache at least minShardBytes.
func bigShards(sizeMB int) int {
	limit := sizeMB * (1 << 20) / minShardBytes
	shards := 1
	for shards*2 <= limit && shards*2 <= maxBigShards {
		shards *= 2
	}
	return shards
}

// NewBigStore creates a bigcache-backed store capped at sizeMB.
func NewBigStore(ctx context.Context, sizeMB int, ttl time.Duration) (*BigStore, error) {
	if sizeMB <= 0 {
		return nil, fmt.Errorf("bigcache size must be positive, got %d MB", sizeMB)
	}
	cleanWindow := ttl / 2
	if cleanWindow < time.Second {
		cleanWindow = time.Second
	}

	c, err := bigcache.New(ctx, bigcache.Config{
		Shards:             bigShards(sizeMB),
		LifeWindow:         ttl,
		CleanWindow:        cleanWindow,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       maxEntrySize,
		HardMaxCacheSize:   sizeMB,
		Verbose:            false,
		OnRemoveWithReason: func(_ string, _ []byte, reason bigcache.RemoveReason) {
			if reason != bigcache.Deleted {
				evictionsTotal.Inc()
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}
	return &BigStore{cache: c}, nil
}

func (s *BigStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := s.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *BigStore) Set(_ context.Context, key string, value []byte) error {
	return s.cache.Set(key, value)
}

func (s *BigStore) Stats() map[string]interface{} {
	return map[string]interface{}{
		"backend":  "bigcache",
		"len":      s.cache.Len(),
		"capacity": s.cache.Capacity(),
	}
}

func (s *BigStore) Close() error {
	return s.cache.Close()
}
