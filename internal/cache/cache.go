// Package cache provides the tile cache: pluggable storage backends behind a
// single-flight lookup.
package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/h3tiles/server/internal/tile"
)

// Key identifies one tile payload. It holds logical identifiers only.
type Key struct {
	Table string
	Z     int
	X     int
	Y     int
}

// TileKey builds the key for a table and tile address.
func TileKey(table string, addr tile.Address) Key {
	return Key{Table: table, Z: addr.Z, X: addr.X, Y: addr.Y}
}

func (k Key) String() string {
	return fmt.Sprintf("tile:%s/%d/%d/%d", k.Table, k.Z, k.X, k.Y)
}

// ComputeFunc produces a tile on a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// TileCache deduplicates concurrent computations per key and keeps
// successful results in a Store.
type TileCache struct {
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

// New creates a tile cache over store.
func New(store Store, logger *zap.Logger) *TileCache {
	return &TileCache{
		store:  store,
		logger: logger,
	}
}

// GetOrCompute returns the cached payload for key, or runs compute once for
// all concurrent callers of the same key and caches its result. Failures are
// returned to every waiter and never cached.
//
// compute runs on a context that ignores the caller's cancellation: a caller
// that gives up gets ctx.Err() while the computation finishes for the rest.
func (c *TileCache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) ([]byte, error) {
	k := key.String()
	if data, ok := c.lookup(ctx, k); ok {
		hitsTotal.Inc()
		return data, nil
	}
	missesTotal.Inc()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (interface{}, error) {
		// A flight for this key may have completed between our lookup and
		// joining the group.
		if data, ok := c.lookup(flightCtx, k); ok {
			return data, nil
		}

		data, err := compute(flightCtx)
		if err != nil {
			computeErrorsTotal.Inc()
			return nil, err
		}

		if err := c.store.Set(flightCtx, k, data); err != nil {
			storeErrorsTotal.WithLabelValues("set").Inc()
			c.logger.Warn("Failed to cache tile", zap.String("key", k), zap.Error(err))
		}
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			sharedTotal.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup treats backend read errors as misses.
func (c *TileCache) lookup(ctx context.Context, k string) ([]byte, bool) {
	data, ok, err := c.store.Get(ctx, k)
	if err != nil {
		storeErrorsTotal.WithLabelValues("get").Inc()
		c.logger.Warn("Tile cache read failed", zap.String("key", k), zap.Error(err))
		return nil, false
	}
	return data, ok
}

// Stats returns cache statistics.
func (c *TileCache) Stats() map[string]interface{} {
	return c.store.Stats()
}

// Close closes the underlying store.
func (c *TileCache) Close() error {
	return c.store.Close()
}
