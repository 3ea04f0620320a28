package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"laju/internal/config"
)

// PoolOptions содержит настройки для пула подключений PostgreSQL.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	HealthCheckPeriod time.Duration
	MaxConnIdleTime   time.Duration
	// PingTimeout - таймаут проверки соединения при создании пула
	PingTimeout time.Duration
}

// PoolOptionsFromDescriptor переносит политику пула дескриптора на pgxpool.
// В отличие от database/sql, pgxpool умеет держать минимум соединений.
func PoolOptionsFromDescriptor(d config.Descriptor) PoolOptions {
	return PoolOptions{
		MaxConns:          int32(d.Pool.Max),
		MinConns:          int32(d.Pool.Min),
		HealthCheckPeriod: 30 * time.Second,
		MaxConnIdleTime:   d.Pool.IdleTimeout,
		PingTimeout:       d.Pool.AcquireTimeout,
	}
}

// NewPoolWithOptions создает новый пул подключений к PostgreSQL с заданными параметрами.
func NewPoolWithOptions(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = opts.MinConns
	if opts.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = opts.HealthCheckPeriod
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
