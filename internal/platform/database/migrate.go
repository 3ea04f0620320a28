package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"laju/internal/config"
)

// MigrationInfo содержит информацию о результате применения миграций.
type MigrationInfo struct {
	Applied        bool // Были ли применены новые миграции
	CurrentVersion uint // Версия до применения
	FinalVersion   uint // Версия после применения
	Dirty          bool // Находится ли БД в "грязном" состоянии
}

// Migrator применяет миграции из fs.FS к базе дескриптора.
// Файлы берутся из поддиректории с именем клиента: sqlite, postgres или mysql.
type Migrator struct {
	desc config.Descriptor
	fsys fs.FS
	log  *slog.Logger
}

// NewMigrator создает Migrator.
func NewMigrator(desc config.Descriptor, fsys fs.FS, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{desc: desc, fsys: fsys, log: log}
}

// Up применяет все новые миграции.
// Повторный вызов безопасен: migrate.ErrNoChange не считается ошибкой.
func (m *Migrator) Up() (MigrationInfo, error) {
	var info MigrationInfo

	err := m.with(func(mg *migrate.Migrate) error {
		current, dirty, err := mg.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get current version: %w", err)
		}
		info.CurrentVersion = current
		info.FinalVersion = current
		info.Dirty = dirty

		if dirty {
			return fmt.Errorf("database is in dirty state at version %d", current)
		}

		if err := mg.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("failed to apply migrations: %w", err)
		}

		info.Applied = true
		if final, _, err := mg.Version(); err == nil {
			info.FinalVersion = final
		}
		return nil
	})
	if err != nil {
		return info, err
	}

	m.log.Info("migrations applied",
		slog.String("client", m.desc.ClientName()),
		slog.Bool("applied", info.Applied),
		slog.Uint64("from", uint64(info.CurrentVersion)),
		slog.Uint64("to", uint64(info.FinalVersion)),
	)
	return info, nil
}

// Down откатывает steps миграций. steps <= 0 откатывает все.
func (m *Migrator) Down(steps int) error {
	return m.with(func(mg *migrate.Migrate) error {
		var err error
		if steps > 0 {
			err = mg.Steps(-steps)
		} else {
			err = mg.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		return nil
	})
}

// MigrateTo переводит схему к указанной версии вверх или вниз.
func (m *Migrator) MigrateTo(version uint) error {
	return m.with(func(mg *migrate.Migrate) error {
		if err := mg.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to migrate to version %d: %w", version, err)
		}
		return nil
	})
}

// Version возвращает текущую версию схемы. До первой миграции - 0, false.
func (m *Migrator) Version() (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := m.with(func(mg *migrate.Migrate) error {
		v, d, err := mg.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				return nil
			}
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

func (m *Migrator) with(fn func(*migrate.Migrate) error) error {
	if m.desc.IsSQLite() {
		if err := os.MkdirAll(filepath.Dir(m.desc.Filename), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", m.desc.Filename, err)
		}
	}

	databaseURL, err := MigrateURL(m.desc)
	if err != nil {
		return fmt.Errorf("failed to build database URL: %w", err)
	}

	src, err := iofs.New(m.fsys, string(m.desc.Client))
	if err != nil {
		return fmt.Errorf("failed to create iofs source: %w", err)
	}

	mg, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := mg.Close()
		if sourceErr != nil || dbErr != nil {
			m.log.Warn("failed to close migrate instance",
				slog.Any("source_error", sourceErr),
				slog.Any("db_error", dbErr),
			)
		}
	}()

	return fn(mg)
}
