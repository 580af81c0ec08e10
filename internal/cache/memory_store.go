package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process LRU with per-entry TTL.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore creates a store holding at most maxEntries tiles, each for ttl.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	lru := expirable.NewLRU[string, []byte](maxEntries, func(string, []byte) {
		evictionsTotal.Inc()
	}, ttl)
	return &MemoryStore{lru: lru}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := s.lru.Get(key)
	return data, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.lru.Add(key, value)
	return nil
}

func (s *MemoryStore) Stats() map[string]interface{} {
	return map[string]interface{}{
		"backend": "memory",
		"len":     s.lru.Len(),
	}
}

func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}
