// Package repository implements the entity, lease and content match stores on
// PostgreSQL with the pgvector extension.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns    = 10
	defaultPingTimeout = 5 * time.Second
)

var errNoPool = errors.New("database pool is not configured")

// PoolOptions tunes the connection pool. Zero fields keep pgxpool defaults,
// except MaxConns which defaults to 10.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	PingTimeout     time.Duration
}

func (o PoolOptions) apply(cfg *pgxpool.Config) {
	cfg.MaxConns = defaultMaxConns
	if o.MaxConns > 0 {
		cfg.MaxConns = int32(o.MaxConns)
	}
	if o.MinConns > 0 {
		cfg.MinConns = int32(min(o.MinConns, int(cfg.MaxConns)))
	}
	if o.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = o.MaxConnLifetime
	}
	if o.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = o.MaxConnIdleTime
	}
}

// OpenPool connects to dsn and verifies the server answers before returning.
func OpenPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	opts.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s:%d: %w", cfg.ConnConfig.Host, cfg.ConnConfig.Port, err)
	}
	return pool, nil
}

// PoolHealth probes a pool for the health endpoint.
type PoolHealth struct {
	pool *pgxpool.Pool
}

// NewPoolHealth wraps pool.
func NewPoolHealth(pool *pgxpool.Pool) *PoolHealth {
	return &PoolHealth{pool: pool}
}

func (h *PoolHealth) Ping(ctx context.Context) error {
	if h.pool == nil {
		return errNoPool
	}
	return h.pool.Ping(ctx)
}

// PoolUsage is a snapshot of connection counts.
type PoolUsage struct {
	Total    int32 `json:"total"`
	Acquired int32 `json:"acquired"`
	Idle     int32 `json:"idle"`
}

// Usage returns current connection counts; zero without a pool.
func (h *PoolHealth) Usage() PoolUsage {
	if h.pool == nil {
		return PoolUsage{}
	}
	s := h.pool.Stat()
	return PoolUsage{Total: s.TotalConns(), Acquired: s.AcquiredConns(), Idle: s.IdleConns()}
}
