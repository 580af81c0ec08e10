// Package database owns the PostgreSQL connection pool and runs statements
// built by the query package.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/h3tiles/server/internal/query"
)

// ErrConnectionUnavailable is returned when no pooled connection could be
// acquired within the acquire timeout.
var ErrConnectionUnavailable = errors.New("database connection unavailable")

// QueryError wraps a failure reported while executing a statement.
type QueryError struct {
	Kind query.Kind
	Err  error
}

func (e *QueryError) Error() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return fmt.Sprintf("%s query failed: %s (SQLSTATE %s)", e.Kind, pgErr.Message, pgErr.Code)
	}
	return fmt.Sprintf("%s query failed: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Executor runs a statement that yields exactly one scalar and scans it into
// dest.
type Executor interface {
	Scalar(ctx context.Context, stmt query.Statement, dest any) error
}

// Config contains pool settings.
type Config struct {
	URL            string
	MaxConns       int32
	MinConns       int32
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
}

// Gateway executes statements on a pgx pool.
type Gateway struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	queryTimeout   time.Duration
	logger         *zap.Logger
}

var _ Executor = (*Gateway)(nil)

// Connect creates the pool and verifies connectivity.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Gateway, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	logger.Info("Database pool ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)

	return NewGateway(pool, cfg, logger), nil
}

// NewGateway wraps an existing pool.
func NewGateway(pool *pgxpool.Pool, cfg Config, logger *zap.Logger) *Gateway {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 5 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	return &Gateway{
		pool:           pool,
		acquireTimeout: cfg.AcquireTimeout,
		queryTimeout:   cfg.QueryTimeout,
		logger:         logger,
	}
}

// Scalar acquires a connection, runs stmt and scans its single value into
// dest. The connection is released on every path.
func (g *Gateway) Scalar(ctx context.Context, stmt query.Statement, dest any) (err error) {
	start := time.Now()
	defer func() {
		observeQuery(stmt.Kind, err, time.Since(start))
	}()

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, g.acquireTimeout)
	conn, err := g.pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		g.logger.Warn("Failed to acquire connection", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	defer conn.Release()

	queryCtx, cancelQuery := context.WithTimeout(ctx, g.queryTimeout)
	defer cancelQuery()

	if err := conn.QueryRow(queryCtx, stmt.SQL, stmt.Args...).Scan(dest); err != nil {
		return classify(stmt.Kind, err)
	}
	return nil
}

// classify maps driver errors onto the gateway taxonomy.
func classify(kind query.Kind, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{Kind: kind, Err: err}
	}
	if pgconn.SafeToRetry(err) {
		// The statement never reached the server.
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	return &QueryError{Kind: kind, Err: err}
}

// Stats reports pool utilisation.
func (g *Gateway) Stats() map[string]interface{} {
	s := g.pool.Stat()
	return map[string]interface{}{
		"total_conns":    s.TotalConns(),
		"idle_conns":     s.IdleConns(),
		"acquired_conns": s.AcquiredConns(),
		"max_conns":      s.MaxConns(),
	}
}

// Close closes every pooled connection.
func (g *Gateway) Close() {
	g.pool.Close()
}
