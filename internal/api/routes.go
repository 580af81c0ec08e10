// Package api provides HTTP handlers for the h3tiles server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/h3tiles/server/internal/cache"
	"github.com/h3tiles/server/internal/service"
	"github.com/h3tiles/server/internal/tile"
)

const maxQueryBody = 10 << 20

// StatsProvider reports runtime statistics of a shared resource.
type StatsProvider interface {
	Stats() map[string]interface{}
}

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *TableRegistry
	Counter     *service.CountService
	Cache       *cache.TileCache
	Pool        StatsProvider
	CORSOrigins []string
	TileDir     string
	Logger      *zap.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(protobufContentType)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tables", tablesHandler(cfg.Registry))
		r.Get("/cache/stats", cacheStatsHandler(cfg.Cache, cfg.Pool))
	})

	if cfg.TileDir != "" {
		r.Handle("/tiles/*", http.StripPrefix("/tiles/", http.FileServer(http.Dir(cfg.TileDir))))
	}

	r.Post("/query", countHandler(cfg.Registry, cfg.Counter, logger))

	// NOTE: chi treats '.' as a param delimiter for `{y}.{format}`, which only
	// works when the last segment has exactly one dot. Capture the whole
	// segment and split the extension in the handler instead.
	r.Get("/{table}/{z}/{x}/{tile}", tileHandler(cfg.Registry, logger))

	return r
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// splitTileSegment splits "3.pbf" into "3" and "pbf".
func splitTileSegment(seg string) (y, ext string) {
	i := strings.LastIndexByte(seg, '.')
	if i < 0 {
		return seg, ""
	}
	return seg[:i], seg[i+1:]
}

func tileHandler(registry *TableRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		ySeg, ext := splitTileSegment(chi.URLParam(r, "tile"))

		if _, err := tile.ParseFormat(ext); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		svc := registry.Get(table)
		if svc == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s", service.ErrUnknownTable, table))
			return
		}

		z, err := strconv.Atoi(chi.URLParam(r, "z"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid z")
			return
		}
		x, err := strconv.Atoi(chi.URLParam(r, "x"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid x")
			return
		}
		y, err := strconv.Atoi(ySeg)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid y")
			return
		}

		data, err := svc.GetTile(r.Context(), z, x, y)
		if err != nil {
			var verr *tile.ValidationError
			switch {
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Error())
			case errors.Is(err, context.Canceled):
				logger.Debug("Tile request cancelled", zap.String("path", r.URL.Path))
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}

		w.Header().Set("Content-Type", tile.MediaTypeMVT)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

type countRequest struct {
	TableName   *string         `json:"table_name"`
	Geometry    json.RawMessage `json:"geometry"`
	LessThan    *int64          `json:"less_than"`
	GreaterThan *int64          `json:"greater_than"`
}

func (req countRequest) validate() error {
	var missing []string
	if req.TableName == nil {
		missing = append(missing, "table_name")
	}
	if len(req.Geometry) == 0 {
		missing = append(missing, "geometry")
	}
	if req.LessThan == nil {
		missing = append(missing, "less_than")
	}
	if req.GreaterThan == nil {
		missing = append(missing, "greater_than")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func countHandler(registry *TableRegistry, counter *service.CountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req countRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		svc := registry.Get(*req.TableName)
		if svc == nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("%v: %s", service.ErrUnknownTable, *req.TableName))
			return
		}

		geom, err := service.ParseGeometry(req.Geometry)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		n, err := counter.Count(r.Context(), svc.Schema(), geom, *req.GreaterThan, *req.LessThan)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debug("Count request cancelled")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]int64{"count": n})
	}
}

func tablesHandler(registry *TableRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"tables": registry.Tables(),
		})
	}
}

func cacheStatsHandler(tc *cache.TileCache, pool StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{}
		if tc != nil {
			resp["cache"] = tc.Stats()
		}
		if pool != nil {
			resp["pool"] = pool.Stats()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
