package database

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/h3tiles/server/internal/query"
)

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "h3tiles_db_query_duration_seconds",
	Help:    "Time spent acquiring a connection and running a statement.",
	Buckets: prometheus.DefBuckets,
}, []string{"kind", "outcome"})

func observeQuery(kind query.Kind, err error, elapsed time.Duration) {
	queryDuration.WithLabelValues(string(kind), outcome(err)).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	var qerr *QueryError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConnectionUnavailable):
		return "unavailable"
	case errors.As(err, &qerr):
		return "error"
	default:
		return "cancelled"
	}
}
