package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"laju/internal/config"
)

// HealthCheck выполняет разовую проверку доступности postgres для дескриптора:
// создаёт временный пул, выполняет ping и SELECT 1, закрывает пул.
func HealthCheck(ctx context.Context, d config.Descriptor) (DBStats, error) {
	if d.Client != config.ClientPostgres {
		return DBStats{}, fmt.Errorf("health check requires a postgres descriptor, got %s", d.ClientName())
	}

	dsn, err := DSN(d)
	if err != nil {
		return DBStats{}, err
	}

	pool, err := NewPoolWithOptions(ctx, dsn, PoolOptionsFromDescriptor(d))
	if err != nil {
		return DBStats{}, fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	if err := HealthCheckPool(ctx, pool); err != nil {
		return DBStats{}, err
	}
	return GetPoolStats(pool), nil
}

// HealthCheckPool выполняет проверку здоровья существующего пула подключений.
func HealthCheckPool(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pool ping failed: %w", err)
	}

	var result int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("simple query failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected query result: got %d, want 1", result)
	}

	return nil
}

// DBStats содержит статистику подключений к БД.
type DBStats struct {
	MaxConns     int32
	OpenConns    int32
	InUse        int32
	Idle         int32
	WaitCount    int64
	WaitDuration time.Duration
}

// GetPoolStats возвращает статистику пула подключений.
func GetPoolStats(pool *pgxpool.Pool) DBStats {
	if pool == nil {
		return DBStats{}
	}

	stats := pool.Stat()
	return DBStats{
		MaxConns:     stats.MaxConns(),
		OpenConns:    stats.TotalConns(),
		InUse:        stats.AcquiredConns(),
		Idle:         stats.IdleConns(),
		WaitCount:    stats.EmptyAcquireCount(),
		WaitDuration: stats.AcquireDuration(),
	}
}
