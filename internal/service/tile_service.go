// Package service provides business logic for the tile server.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/h3tiles/server/internal/cache"
	"github.com/h3tiles/server/internal/config"
	"github.com/h3tiles/server/internal/database"
	"github.com/h3tiles/server/internal/query"
	"github.com/h3tiles/server/internal/tile"
)

// ErrUnknownTable is returned for tables outside the configured allow-list.
var ErrUnknownTable = errors.New("table not found")

// TileServiceConfig contains tile service configuration.
type TileServiceConfig struct {
	Schema config.TableSchema
	Cache  *cache.TileCache
	DB     database.Executor
	Logger *zap.Logger
}

// TileService serves vector tiles for one table.
type TileService struct {
	schema config.TableSchema
	cache  *cache.TileCache
	db     database.Executor
	logger *zap.Logger
}

// NewTileService creates a new tile service.
func NewTileService(cfg TileServiceConfig) *TileService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TileService{
		schema: cfg.Schema,
		cache:  cfg.Cache,
		db:     cfg.DB,
		logger: logger.With(zap.String("table", cfg.Schema.Table)),
	}
}

// Schema returns the table schema the service renders.
func (s *TileService) Schema() config.TableSchema {
	return s.schema
}

// GetTile returns the MVT payload for z/x/y. Out-of-range coordinates fail
// with *tile.ValidationError before the cache or database is touched. An
// empty payload means the tile has no features.
func (s *TileService) GetTile(ctx context.Context, z, x, y int) ([]byte, error) {
	addr, err := tile.NewAddress(z, x, y)
	if err != nil {
		return nil, err
	}

	return s.cache.GetOrCompute(ctx, cache.TileKey(s.schema.Table, addr), func(ctx context.Context) ([]byte, error) {
		return s.render(ctx, addr)
	})
}

func (s *TileService) render(ctx context.Context, addr tile.Address) ([]byte, error) {
	stmt := query.Tile(addr.Envelope(), s.schema)

	var data []byte
	if err := s.db.Scalar(ctx, stmt, &data); err != nil {
		s.logger.Error("Tile query failed", zap.Stringer("tile", addr), zap.Error(err))
		return nil, err
	}

	s.logger.Debug("Rendered tile", zap.Stringer("tile", addr), zap.Int("bytes", len(data)))
	return data, nil
}
