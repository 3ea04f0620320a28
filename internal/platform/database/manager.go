// Package database открывает соединения query-builder для активного бэкенда
// (sqlite, postgres или mysql) и нативный сервис встроенной БД.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"

	"laju/internal/config"
	"laju/internal/platform/sqlite"
	"laju/internal/shared"
)

// Manager создает соединения по конфигурации окружения.
// Дескриптор вычисляется заново при каждом вызове Connection.
type Manager struct {
	log    *slog.Logger
	lookup func(string) string
}

// Option настраивает Manager.
type Option func(*Manager)

// WithLookup задает источник переменных окружения (по умолчанию os.Getenv).
func WithLookup(lookup func(string) string) Option {
	return func(m *Manager) {
		m.lookup = lookup
	}
}

// NewManager создает Manager.
func NewManager(log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{log: log, lookup: os.Getenv}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ActiveStage возвращает stage из DB_CONNECTION.
func (m *Manager) ActiveStage() config.Stage {
	return config.ActiveStage(m.lookup)
}

// Resolve возвращает дескриптор для stage.
func (m *Manager) Resolve(stage config.Stage) config.Descriptor {
	return config.ResolveFrom(stage, m.lookup)
}

// IsSQLite сообщает, использует ли активный stage встроенный движок.
func (m *Manager) IsSQLite() bool {
	return m.Resolve(m.ActiveStage()).IsSQLite()
}

// Connection открывает новое соединение для stage.
// Соединение с сервером устанавливается при первом запросе.
// Каждый вызов возвращает независимый экземпляр, закрывать его должен вызывающий.
func (m *Manager) Connection(ctx context.Context, stage config.Stage) (*Conn, error) {
	desc := m.Resolve(stage)
	if err := desc.Validate(); err != nil {
		return nil, shared.MarkKind(fmt.Errorf("invalid %s database configuration: %w", stage, err), shared.KindValidation)
	}

	db, err := open(desc)
	if err != nil {
		return nil, err
	}

	ApplyOptimizations(ctx, db, desc, m.log)

	m.log.Debug("database connection created", slog.Any("db", desc))

	return &Conn{DB: db, Descriptor: desc, Stage: stage}, nil
}

// Default открывает соединение для активного stage.
func (m *Manager) Default(ctx context.Context) (*Conn, error) {
	return m.Connection(ctx, m.ActiveStage())
}

// Native создает нативный сервис встроенной БД для активного stage.
// Для postgres и mysql возвращается sqlite.Unavailable.
func (m *Manager) Native(ctx context.Context) (sqlite.Service, error) {
	return sqlite.OpenNative(ctx, m.Resolve(m.ActiveStage()), m.log)
}

func open(desc config.Descriptor) (*sqlx.DB, error) {
	driver, dsn, err := DataSource(desc)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("invalid %s data source: %w", desc.Client, err), shared.KindValidation)
	}

	if desc.IsSQLite() {
		db, err := sqlite.Open(desc.Filename, sqlite.OptionsFromDescriptor(desc))
		if err != nil {
			return nil, err
		}
		return sqlx.NewDb(db, driver), nil
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", desc.Client, err)
	}
	applyPool(db.DB, desc.Pool)
	return db, nil
}

// applyPool переносит политику пула на database/sql.
// Минимум не поддерживается напрямую: при Min > 0 idle соединения не истекают.
func applyPool(db *sql.DB, p config.Pool) {
	db.SetMaxOpenConns(p.Max)
	db.SetMaxIdleConns(max(p.Max, p.Min))
	if p.Min == 0 {
		db.SetConnMaxIdleTime(p.IdleTimeout)
	}
}
