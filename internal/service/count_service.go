package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/h3tiles/server/internal/config"
	"github.com/h3tiles/server/internal/database"
	"github.com/h3tiles/server/internal/query"
)

// ErrInvalidGeometry is returned when the request geometry cannot be decoded.
var ErrInvalidGeometry = errors.New("invalid geometry")

// CountServiceConfig contains count service configuration.
type CountServiceConfig struct {
	DB      database.Executor
	Options query.CountOptions
	Logger  *zap.Logger
}

// CountService answers polygon count queries. Results are not cached since
// the input geometry is unbounded.
type CountService struct {
	db     database.Executor
	opts   query.CountOptions
	logger *zap.Logger
}

// NewCountService creates a new count service.
func NewCountService(cfg CountServiceConfig) *CountService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountService{
		db:     cfg.DB,
		opts:   cfg.Options,
		logger: logger,
	}
}

// ParseGeometry decodes a GeoJSON geometry, or the geometry of a GeoJSON
// feature.
func ParseGeometry(raw []byte) (geom orb.Geometry, err error) {
	// orb dereferences null members of a GeometryCollection.
	defer func() {
		if r := recover(); r != nil {
			geom, err = nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, r)
		}
	}()

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Type == "" {
		return nil, fmt.Errorf("%w: expected a GeoJSON object with a type", ErrInvalidGeometry)
	}

	if probe.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("%w: feature has no geometry", ErrInvalidGeometry)
		}
		return f.Geometry, nil
	}

	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return g.Geometry(), nil
}

// Count returns the number of join-table rows sharing an H3 cell with rows
// of schema.Table that cover geom and whose band value lies strictly between
// greaterThan and lessThan.
func (s *CountService) Count(ctx context.Context, schema config.TableSchema, geom orb.Geometry, greaterThan, lessThan int64) (int64, error) {
	encoded, err := geojson.NewGeometry(geom).MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	stmt := query.Count(string(encoded), schema, s.opts, greaterThan, lessThan)

	var n int64
	if err := s.db.Scalar(ctx, stmt, &n); err != nil {
		s.logger.Error("Count query failed", zap.String("table", schema.Table), zap.Error(err))
		return 0, err
	}
	return n, nil
}
