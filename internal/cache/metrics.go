package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "h3tiles_tile_cache_hits_total",
		Help: "Tile lookups served from the cache.",
	})
	missesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "h3tiles_tile_cache_misses_total",
		Help: "Tile lookups that had to join or start a computation.",
	})
	sharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "h3tiles_tile_cache_shared_total",
		Help: "Callers that received a result computed for a concurrent request.",
	})
	computeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "h3tiles_tile_cache_compute_errors_total",
		Help: "Tile computations that failed and were not cached.",
	})
	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "h3tiles_tile_cache_store_errors_total",
		Help: "Backend failures while reading or writing cached tiles.",
	}, []string{"op"})
	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "h3tiles_tile_cache_evictions_total",
		Help: "Entries removed for age or capacity.",
	})
)
