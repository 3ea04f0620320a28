package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite драйвер

	"laju/internal/config"
)

// DriverName - имя драйвера modernc.org/sqlite в database/sql.
const DriverName = "sqlite"

// TxLockMode определяет режим блокировки транзакций SQLite
type TxLockMode string

const (
	// TxLockDeferred - откладывает блокировку до первого чтения/записи (по умолчанию SQLite)
	TxLockDeferred TxLockMode = "deferred"
	// TxLockImmediate - сразу захватывает RESERVED блокировку, избегая SQLITE_BUSY при апгрейде до записи
	TxLockImmediate TxLockMode = "immediate"
	// TxLockExclusive - сразу захватывает EXCLUSIVE блокировку
	TxLockExclusive TxLockMode = "exclusive"
)

// DBOptions содержит настройки для SQLite базы данных.
type DBOptions struct {
	// MaxOpenConns - максимальное количество открытых соединений
	MaxOpenConns int
	// MaxIdleConns - максимальное количество idle соединений
	MaxIdleConns int
	// ConnMaxIdleTime - время простоя, после которого соединение закрывается (0 - никогда)
	ConnMaxIdleTime time.Duration
	// PingTimeout - таймаут проверки соединения при открытии
	PingTimeout time.Duration
	// WALMode - использовать ли WAL режим журнала
	WALMode bool
	// SynchronousNormal - synchronous = NORMAL вместо FULL
	SynchronousNormal bool
	// ForeignKeys - включить ли проверку внешних ключей
	ForeignKeys bool
	// BusyTimeout - таймаут ожидания при SQLITE_BUSY
	BusyTimeout time.Duration
	// TxLockMode - режим блокировки для BEGIN, передаётся драйверу через DSN
	TxLockMode TxLockMode
}

// DefaultDBOptions возвращает настройки по умолчанию для встроенного движка:
// одно соединение, WAL, synchronous = NORMAL, внешние ключи и busy timeout 5 секунд.
func DefaultDBOptions() DBOptions {
	return DBOptions{
		MaxOpenConns:      1, // SQLite сериализует писателей
		MaxIdleConns:      1,
		ConnMaxIdleTime:   0, // соединение держится всегда, PRAGMA привязаны к нему
		PingTimeout:       5 * time.Second,
		WALMode:           true,
		SynchronousNormal: true,
		ForeignKeys:       true,
		BusyTimeout:       5 * time.Second,
		TxLockMode:        TxLockDeferred,
	}
}

// OptionsFromDescriptor строит DBOptions по политике пула дескриптора.
// Пока пул держит минимум соединений (Min > 0), idle таймаут не применяется:
// database/sql не умеет закрывать соединения только сверх минимума.
func OptionsFromDescriptor(d config.Descriptor) DBOptions {
	opts := DefaultDBOptions()
	opts.MaxOpenConns = d.Pool.Max
	opts.MaxIdleConns = d.Pool.Max
	if d.Pool.Min == 0 {
		opts.ConnMaxIdleTime = d.Pool.IdleTimeout
	}
	if d.Pool.AcquireTimeout > 0 {
		opts.PingTimeout = d.Pool.AcquireTimeout
	}
	return opts
}

// Open открывает пул database/sql для файла dbPath без проверки соединения
// и без PRAGMA. Директория файла создаётся при необходимости.
func Open(dbPath string, opts DBOptions) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(DriverName, BuildDSN(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	return db, nil
}

// NewDBWithOptions открывает базу, проверяет соединение и применяет PRAGMA.
// В отличие от ApplyPragmas, любая ошибка PRAGMA здесь фатальна.
func NewDBWithOptions(ctx context.Context, dbPath string, opts DBOptions) (*sql.DB, error) {
	db, err := Open(dbPath, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	for _, pragma := range Pragmas(opts) {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return db, nil
}

// BuildDSN строит DSN для modernc.org/sqlite.
// PRAGMA сюда не попадают: они применяются после открытия соединения.
func BuildDSN(dbPath string, opts DBOptions) string {
	if opts.TxLockMode == "" || opts.TxLockMode == TxLockDeferred {
		return dbPath
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_txlock=" + string(opts.TxLockMode)
}

// NewInMemoryDB создает in-memory SQLite базу данных для тестов.
func NewInMemoryDB(ctx context.Context) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.WALMode = false // WAL не поддерживается для in-memory БД
	return NewDBWithOptions(ctx, ":memory:", opts)
}

// NewTestDB создает временную файловую SQLite базу данных для тестов.
func NewTestDB(ctx context.Context) (*sql.DB, string, error) {
	tmpFile, err := os.CreateTemp("", "test_db_*.sqlite")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := NewDBWithOptions(ctx, tmpPath, DefaultDBOptions())
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, "", err
	}

	return db, tmpPath, nil
}

// CleanupTestDB закрывает тестовую БД и удаляет файл вместе с WAL и SHM.
func CleanupTestDB(db *sql.DB, dbPath string) error {
	if db != nil {
		_ = db.Close()
	}
	if dbPath == "" || dbPath == ":memory:" {
		return nil
	}
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")
	return os.Remove(dbPath)
}

// Pragmas возвращает PRAGMA настройки в порядке применения:
// режим журнала, синхронизация, внешние ключи, busy timeout.
func Pragmas(opts DBOptions) []string {
	pragmas := make([]string, 0, 4)
	if opts.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	if opts.SynchronousNormal {
		pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")
	}
	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}
	if opts.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()))
	}
	return pragmas
}

// Execer - минимальный интерфейс для выполнения PRAGMA.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyPragmas применяет PRAGMA по одной, независимо друг от друга.
// Ошибка отдельной PRAGMA логируется как предупреждение и не прерывает
// остальные: база остаётся пригодной даже на read-only файловой системе.
// Возвращает количество успешно применённых настроек.
func ApplyPragmas(ctx context.Context, db Execer, opts DBOptions, log *slog.Logger) int {
	if log == nil {
		log = slog.Default()
	}

	applied := 0
	for _, pragma := range Pragmas(opts) {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			log.Warn("failed to apply sqlite pragma", slog.String("pragma", pragma), slog.Any("error", err))
			continue
		}
		applied++
	}
	return applied
}
