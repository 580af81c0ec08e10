package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares tiles between server instances. Payloads are stored
// zstd-compressed and expire through Redis TTLs; capacity follows the
// server's maxmemory policy.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// NewRedisStore connects to addr and verifies it with PING.
func NewRedisStore(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging redis at %s: %w", addr, err)
	}
	return newRedisStore(client, prefix, ttl)
}

func newRedisStore(client *redis.Client, prefix string, ttl time.Duration) (*RedisStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		enc:    enc,
		dec:    dec,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := s.decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt cached tile %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, s.encode(value), s.ttl).Err()
}

func (s *RedisStore) encode(value []byte) []byte {
	return s.enc.EncodeAll(value, nil)
}

func (s *RedisStore) decode(raw []byte) ([]byte, error) {
	return s.dec.DecodeAll(raw, nil)
}

func (s *RedisStore) Stats() map[string]interface{} {
	ps := s.client.PoolStats()
	return map[string]interface{}{
		"backend":     "redis",
		"prefix":      s.prefix,
		"pool_hits":   ps.Hits,
		"pool_misses": ps.Misses,
		"total_conns": ps.TotalConns,
	}
}

func (s *RedisStore) Close() error {
	s.dec.Close()
	s.enc.Close()
	return s.client.Close()
}
