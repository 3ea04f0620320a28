package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"laju/internal/config"
	"laju/internal/platform/pg"
)

// MaintenanceStatements - обслуживание встроенного движка: перенос WAL в основной файл
// с усечением журнала и обновление статистики планировщика.
var MaintenanceStatements = []string{
	"PRAGMA wal_checkpoint(TRUNCATE)",
	"PRAGMA optimize",
}

// Maintain выполняет периодическое обслуживание соединения.
// Для sqlite выполняет MaintenanceStatements, для postgres - проверку через pgxpool,
// для mysql - ping.
func Maintain(ctx context.Context, c *Conn, log *slog.Logger) error {
	start := time.Now()

	if c.Descriptor.Client == config.ClientPostgres {
		stats, err := pg.HealthCheck(ctx, c.Descriptor)
		if err != nil {
			return classify(c.Descriptor, err)
		}
		log.Debug("postgres health check ok",
			slog.Int("max_conns", int(stats.MaxConns)),
			slog.Int("open_conns", int(stats.OpenConns)),
			slog.Duration("took", time.Since(start)),
		)
		return nil
	}

	if !c.Descriptor.IsSQLite() {
		if err := c.Ping(ctx); err != nil {
			return err
		}
		log.Debug("database maintenance ping ok",
			slog.String("client", c.Descriptor.ClientName()),
			slog.Duration("took", time.Since(start)),
		)
		return nil
	}

	for _, stmt := range MaintenanceStatements {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("maintenance %q failed: %w", stmt, err)
		}
	}

	log.Info("sqlite maintenance completed",
		slog.String("filename", c.Descriptor.Filename),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}
