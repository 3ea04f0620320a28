package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"laju/internal/adapter/scheduler"
	"laju/internal/config"
	"laju/internal/platform/database"
	"laju/internal/platform/logger"
	"laju/internal/platform/sqlite"
	"laju/migrations"
	"laju/pkg/retry"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
	db  *database.Manager
}

// New loads configuration and creates a new App instance.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "laju-db",
	})
	return NewWith(cfg, log, database.NewManager(log)), nil
}

// NewWith creates an App from already built components.
func NewWith(cfg config.Config, log *slog.Logger, db *database.Manager) *App {
	return &App{cfg: cfg, log: log, db: db}
}

// Close releases logger resources.
func (a *App) Close() error {
	return logger.Close(a.log)
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.log
}

// Descriptor returns the descriptor of the active stage.
func (a *App) Descriptor() config.Descriptor {
	return a.db.Resolve(a.db.ActiveStage())
}

// Ping opens a connection for the active stage and checks it.
func (a *App) Ping(ctx context.Context) error {
	conn, err := a.db.Default(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return err
	}
	a.log.Info("database reachable", slog.Any("db", conn.Descriptor))
	return nil
}

// Wait pings the active database until it answers or the retry budget runs out.
func (a *App) Wait(ctx context.Context, cfg retry.Config) error {
	conn, err := a.db.Default(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			a.log.Warn("database not ready",
				slog.Int("attempt", attempt),
				slog.Duration("retry_in", delay),
				slog.Any("error", err),
			)
		}
	}

	if err := retry.Do(ctx, cfg, conn.Ping); err != nil {
		return fmt.Errorf("database did not become ready: %w", err)
	}
	a.log.Info("database ready", slog.String("client", conn.Descriptor.ClientName()))
	return nil
}

// Migrator returns a migrator for the active stage over embedded migrations.
func (a *App) Migrator() *database.Migrator {
	return database.NewMigrator(a.Descriptor(), migrations.FS, a.log)
}

// Query runs a statement through the native embedded database service.
// Statements that do not return rows are executed with Run.
func (a *App) Query(ctx context.Context, query string, args ...any) ([]sqlite.Row, *sqlite.Result, error) {
	svc, err := a.db.Native(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer svc.Close()

	if returnsRows(query) {
		rows, err := svc.All(ctx, query, args...)
		return rows, nil, err
	}
	res, err := svc.Run(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return nil, &res, nil
}

// Maintain runs one maintenance pass on the active database.
func (a *App) Maintain(ctx context.Context) error {
	conn, err := a.db.Default(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return database.Maintain(ctx, conn, a.log)
}

// RunMaintenance runs Maintain on the configured schedule until ctx is canceled.
func (a *App) RunMaintenance(ctx context.Context) error {
	s := scheduler.New(ctx, a.log)
	if _, err := s.Add(scheduler.Job{
		Name:     "db-maintenance",
		Schedule: a.cfg.Maintenance.Schedule,
		Timeout:  time.Minute,
		Run:      a.Maintain,
	}); err != nil {
		return err
	}

	s.Start()
	for _, e := range s.Entries() {
		a.log.Info("maintenance scheduled", slog.String("job", e.Name), slog.Time("next", e.Next))
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}
