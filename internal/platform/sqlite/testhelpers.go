package sqlite

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"laju/internal/config"
)

// TestDB представляет тестовую SQLite базу данных с удобными хелперами.
type TestDB struct {
	DB       *sql.DB
	Path     string // Путь к файлу БД (":memory:" для in-memory)
	TxRunner *TxRunner
}

// NewTestDBInMemory создает in-memory SQLite БД для тестов.
// БД автоматически закрывается после завершения теста.
func NewTestDBInMemory(t *testing.T) *TestDB {
	t.Helper()

	db, err := NewInMemoryDB(context.Background())
	if err != nil {
		t.Fatalf("Failed to create in-memory test DB: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return &TestDB{DB: db, Path: ":memory:", TxRunner: NewTxRunner(db)}
}

// NewTestDBFile создает файловую SQLite БД для тестов.
// БД автоматически удаляется после завершения теста.
func NewTestDBFile(t *testing.T) *TestDB {
	t.Helper()

	db, path, err := NewTestDB(context.Background())
	if err != nil {
		t.Fatalf("Failed to create file test DB: %v", err)
	}

	t.Cleanup(func() {
		_ = CleanupTestDB(db, path)
	})

	return &TestDB{DB: db, Path: path, TxRunner: NewTxRunner(db)}
}

// NewTestNative открывает нативный сервис над файлом во временной директории теста.
func NewTestNative(t *testing.T) *Native {
	t.Helper()

	desc := config.ResolveFrom(config.StageTest, func(string) string { return "" })
	desc.Filename = filepath.Join(t.TempDir(), "native.sqlite3")

	n, err := NewNative(context.Background(), desc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Failed to open native test DB: %v", err)
	}

	t.Cleanup(func() {
		_ = n.Close()
	})

	return n
}

// Exec выполняет SQL команду и проверяет отсутствие ошибок.
func (tdb *TestDB) Exec(t *testing.T, query string, args ...any) sql.Result {
	t.Helper()

	result, err := tdb.DB.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("Failed to execute query: %v\nQuery: %s", err, query)
	}
	return result
}

// CountRows возвращает количество строк в таблице.
func (tdb *TestDB) CountRows(t *testing.T, table string) int {
	t.Helper()

	var count int
	if err := tdb.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return count
}

// TableExists проверяет существование таблицы.
func (tdb *TestDB) TableExists(t *testing.T, table string) bool {
	t.Helper()

	var count int
	err := tdb.DB.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to check table existence: %v", err)
	}
	return count > 0
}
