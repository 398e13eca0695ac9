// Package postgres persists combat run history in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/autocombat/internal/config"
)

// applicationName tags run-history connections in pg_stat_activity.
const applicationName = "autocombat"

// Pool is the connection pool the run history is written through.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the run-history database described by cfg.
//
// Precondition: cfg.Enabled is set and cfg describes a reachable server.
// Postcondition: Returns a Pool that answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing run history dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening run history pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging run history database %s/%s: %w", cfg.Host, cfg.Name, err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings the database, giving up after timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("run history database: %w", err)
	}
	return nil
}

// HealthCheck adapts Health to the status server's /healthz checks.
func (p *Pool) HealthCheck(timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error { return p.Health(ctx, timeout) }
}

func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgx pool for RunRepository.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
