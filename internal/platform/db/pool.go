package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption adjusts the pool configuration before the pool is created.
type PoolOption func(cfg *pgxpool.Config)

// WithSearchPath pins every pooled connection to schema (public stays
// reachable for extensions such as btree_gist).
func WithSearchPath(schema string) PoolOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema + ", public"
	}
}

// WithHealthCheckPeriod overrides how often idle connections are checked.
func WithHealthCheckPeriod(d time.Duration) PoolOption {
	return func(cfg *pgxpool.Config) {
		cfg.HealthCheckPeriod = d
	}
}

// NewPool opens the process-wide connection pool and verifies it with a ping.
// The caller owns the pool and must Close it on shutdown.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32, opts ...PoolOption) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnIdleTime = 5 * time.Minute
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
