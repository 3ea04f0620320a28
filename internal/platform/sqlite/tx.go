package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNestedTx возвращается при попытке открыть транзакцию внутри уже активной.
// Для вложенных единиц работы используйте WithinSavepoint.
var ErrNestedTx = errors.New("nested transactions are not supported by SQLite")

// txKey используется как ключ для хранения транзакции в context.Context
type txKey struct{}

// txState - значение в контексте: транзакция и runner, который её открыл.
type txState struct {
	runner *TxRunner
	tx     *sql.Tx
}

// Querier объединяет методы выполнения запросов, общие для БД, соединения и транзакции.
// Позволяет работать с одним интерфейсом независимо от того,
// выполняется ли запрос в транзакции или через основное подключение.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Beginner - источник транзакций: пул (*sql.DB) или закреплённое соединение (*sql.Conn).
type Beginner interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Убедимся на этапе компиляции, что типы реализуют интерфейсы
var (
	_ Beginner = (*sql.DB)(nil)
	_ Beginner = (*sql.Conn)(nil)
	_ Querier  = (*sql.Tx)(nil)
)

// TxRunner предоставляет возможность выполнения кода внутри транзакции.
// Реализует паттерн "функция обратного вызова" для гарантированного
// коммита или отката транзакции.
//
// Режим блокировки (DEFERRED/IMMEDIATE/EXCLUSIVE) задаётся при открытии
// базы через DBOptions.TxLockMode и применяется драйвером к каждому BEGIN.
type TxRunner struct {
	DB Beginner

	savepoints atomic.Uint64
}

// NewTxRunner создает новый TxRunner над пулом или соединением.
func NewTxRunner(db Beginner) *TxRunner {
	return &TxRunner{DB: db}
}

// WithinTx выполняет функцию fn внутри транзакции.
// Если fn возвращает ошибку, транзакция откатывается.
// Если fn выполняется успешно (возвращает nil), транзакция коммитится.
// Транзакция доступна внутри fn через SqlTx(ctx) и GetQuerier(ctx).
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, existingTx := SqlTx(ctx); existingTx {
		return ErrNestedTx
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx = context.WithValue(ctx, txKey{}, &txState{runner: r, tx: tx})

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithinSavepoint выполняет функцию fn внутри savepoint.
// Если уже есть активная транзакция, создаёт savepoint внутри неё.
// Если нет активной транзакции, создаёт новую транзакцию и savepoint.
// При ошибке откатывается к savepoint, при успехе - освобождает savepoint.
func (r *TxRunner) WithinSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := SqlTx(ctx); ok {
		return r.executeSavepoint(ctx, tx, fn)
	}

	return r.WithinTx(ctx, func(txCtx context.Context) error {
		return r.executeSavepoint(txCtx, r.GetQuerier(txCtx), fn)
	})
}

// InTx сообщает, открыта ли в контексте транзакция именно этого runner'а.
func (r *TxRunner) InTx(ctx context.Context) bool {
	st, ok := ctx.Value(txKey{}).(*txState)
	return ok && st.runner == r
}

// SqlTx извлекает активную транзакцию из контекста.
// Возвращает транзакцию и флаг, указывающий была ли найдена транзакция в контексте.
func SqlTx(ctx context.Context) (*sql.Tx, bool) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx, true
	}
	return nil, false
}

// GetTxQuerier извлекает транзакцию из контекста как Querier.
func GetTxQuerier(ctx context.Context) (Querier, bool) {
	if tx, ok := SqlTx(ctx); ok {
		return tx, true
	}
	return nil, false
}

// GetQuerier возвращает объект для выполнения запросов.
// Если в контексте есть активная транзакция - возвращает её,
// иначе возвращает основное подключение к БД.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if querier, ok := GetTxQuerier(ctx); ok {
		return querier
	}
	return r.DB
}

// executeSavepoint выполняет функцию внутри savepoint.
func (r *TxRunner) executeSavepoint(ctx context.Context, querier Querier, fn func(context.Context) error) error {
	name := fmt.Sprintf("sp_%d", r.savepoints.Add(1))

	if _, err := querier.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}

	if err := fn(ctx); err != nil {
		if _, rollbackErr := querier.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rollbackErr != nil {
			return fmt.Errorf("failed to rollback to savepoint %s: %v (original error: %w)", name, rollbackErr, err)
		}
		// ROLLBACK TO оставляет savepoint на стеке
		_, _ = querier.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}

	if _, err := querier.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}
