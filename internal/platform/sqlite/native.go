package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"laju/internal/config"
	"laju/internal/shared"
)

// ErrTxInProgress возвращается вызовом без контекста транзакции, пока она открыта.
// Внутри fn запросы нужно выполнять с контекстом, переданным в fn.
var ErrTxInProgress = shared.MarkKind(
	errors.New("a native sqlite transaction is in progress; use the context passed to the transaction function"),
	shared.KindConflict,
)

// Row - строка результата: имя колонки -> значение.
type Row map[string]any

// Result - итог выполнения изменяющего запроса.
type Result struct {
	Changes         int64
	LastInsertRowID int64
}

// Stats - счётчики кэша подготовленных выражений.
type Stats struct {
	// Compiles - сколько раз выражение было скомпилировано (промах кэша)
	Compiles int64
	// Hits - сколько раз было переиспользовано уже скомпилированное выражение
	Hits int64
	// Cached - текущее количество выражений в кэше
	Cached int
}

// Service - нативный сервис встроенной БД.
//
// Реализаций две: *Native (активный клиент sqlite) и Unavailable (любой другой клиент).
// Выбор делается один раз при создании, см. OpenNative.
type Service interface {
	Get(ctx context.Context, query string, args ...any) (Row, bool, error)
	All(ctx context.Context, query string, args ...any) ([]Row, error)
	Run(ctx context.Context, query string, args ...any) (Result, error)
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Database() *sql.Conn
	IsAvailable() bool
	Close() error
}

var (
	_ Service = (*Native)(nil)
	_ Service = Unavailable{}
)

// OpenNative создает нативный сервис для дескриптора.
// Для sqlite файл открывается сразу, для остальных клиентов возвращается Unavailable.
func OpenNative(ctx context.Context, desc config.Descriptor, log *slog.Logger) (Service, error) {
	if !desc.IsSQLite() {
		return Unavailable{Client: desc.ClientName()}, nil
	}
	n, err := NewNative(ctx, desc, log)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// AsNative возвращает *Native, если сервис доступен.
func AsNative(svc Service) (*Native, bool) {
	n, ok := svc.(*Native)
	return n, ok
}

// Bind превращает именованные параметры в аргументы запроса.
// Имена указываются без префикса, в SQL допустимы :name, @name и $name.
func Bind(params map[string]any) []any {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, sql.Named(name, params[name]))
	}
	return args
}

// Native - нативный доступ к встроенной БД через одно закреплённое соединение.
//
// Все выражения готовятся на этом соединении и кэшируются по точному тексту SQL.
// Пока открыта транзакция, вызовы без её контекста (включая Close) сразу
// завершаются с ErrTxInProgress.
type Native struct {
	db     *sql.DB
	conn   *sql.Conn
	runner *TxRunner
	desc   config.Descriptor
	log    *slog.Logger

	// gate сериализует транзакции и одиночные запросы на общем соединении
	gate   sync.Mutex
	txOpen atomic.Bool

	mu    sync.Mutex
	stmts map[string]*sql.Stmt

	compiles atomic.Int64
	hits     atomic.Int64
}

// NewNative открывает файл базы, закрепляет соединение и применяет PRAGMA.
// Ошибки PRAGMA не фатальны.
func NewNative(ctx context.Context, desc config.Descriptor, log *slog.Logger) (*Native, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := desc.Validate(); err != nil {
		return nil, shared.MarkKind(fmt.Errorf("invalid sqlite descriptor: %w", err), shared.KindValidation)
	}

	opts := OptionsFromDescriptor(desc)
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	opts.ConnMaxIdleTime = 0

	db, err := Open(desc.Filename, opts)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	conn, err := db.Conn(acquireCtx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to acquire sqlite connection: %w", err)
	}

	ApplyPragmas(ctx, conn, opts, log)

	log.Debug("native sqlite service opened", slog.Any("db", desc))

	return &Native{
		db:     db,
		conn:   conn,
		runner: NewTxRunner(conn),
		desc:   desc,
		log:    log,
		stmts:  make(map[string]*sql.Stmt),
	}, nil
}

// Get выполняет запрос и возвращает первую строку. ok=false, если строк нет.
func (n *Native) Get(ctx context.Context, query string, args ...any) (Row, bool, error) {
	var (
		row Row
		ok  bool
	)
	err := n.withStmt(ctx, query, func(stmt *sql.Stmt) error {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if rows.Next() {
			row = make(Row)
			if err := sqlx.MapScan(rows, row); err != nil {
				return err
			}
			ok = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, false, n.fail("get", query, err)
	}
	return row, ok, nil
}

// All выполняет запрос и возвращает все строки. Пустой результат - пустой срез.
func (n *Native) All(ctx context.Context, query string, args ...any) ([]Row, error) {
	out := []Row{}
	err := n.withStmt(ctx, query, func(stmt *sql.Stmt) error {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			row := make(Row)
			if err := sqlx.MapScan(rows, row); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, n.fail("all", query, err)
	}
	return out, nil
}

// Run выполняет изменяющий запрос.
func (n *Native) Run(ctx context.Context, query string, args ...any) (Result, error) {
	var res Result
	err := n.withStmt(ctx, query, func(stmt *sql.Stmt) error {
		r, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return err
		}
		if res.Changes, err = r.RowsAffected(); err != nil {
			return err
		}
		res.LastInsertRowID, err = r.LastInsertId()
		return err
	})
	if err != nil {
		return Result{}, n.fail("run", query, err)
	}
	return res, nil
}

// Transaction выполняет fn в транзакции: nil - коммит, ошибка - откат.
// Запросы с контекстом, переданным в fn, выполняются внутри транзакции.
func (n *Native) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := SqlTx(ctx); ok {
		return shared.MarkKind(ErrNestedTx, shared.KindConflict)
	}
	if n.txOpen.Load() {
		return ErrTxInProgress
	}

	n.gate.Lock()
	defer n.gate.Unlock()
	n.txOpen.Store(true)
	defer n.txOpen.Store(false)

	return n.runner.WithinTx(ctx, fn)
}

// Savepoint выполняет fn внутри savepoint. Вне транзакции открывает новую.
func (n *Native) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if n.runner.InTx(ctx) {
		return n.runner.WithinSavepoint(ctx, fn)
	}
	return n.Transaction(ctx, func(txCtx context.Context) error {
		return n.runner.WithinSavepoint(txCtx, fn)
	})
}

// Database возвращает закреплённое соединение для операций, не покрытых сервисом.
func (n *Native) Database() *sql.Conn {
	return n.conn
}

// IsAvailable всегда true для *Native.
func (n *Native) IsAvailable() bool {
	return true
}

// Descriptor возвращает дескриптор, по которому открыт сервис.
func (n *Native) Descriptor() config.Descriptor {
	return n.desc
}

// Stats возвращает счётчики кэша выражений.
func (n *Native) Stats() Stats {
	n.mu.Lock()
	cached := len(n.stmts)
	n.mu.Unlock()

	return Stats{
		Compiles: n.compiles.Load(),
		Hits:     n.hits.Load(),
		Cached:   cached,
	}
}

// Close закрывает кэшированные выражения, соединение и пул.
func (n *Native) Close() error {
	if n.txOpen.Load() {
		return ErrTxInProgress
	}
	n.gate.Lock()
	defer n.gate.Unlock()

	n.mu.Lock()
	for query, stmt := range n.stmts {
		_ = stmt.Close()
		delete(n.stmts, query)
	}
	n.mu.Unlock()

	connErr := n.conn.Close()
	dbErr := n.db.Close()
	if connErr != nil {
		return fmt.Errorf("failed to close sqlite connection: %w", connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close sqlite database: %w", dbErr)
	}
	return nil
}

// withStmt берёт выражение из кэша и выполняет fn.
// Вне собственной транзакции запрос ждёт, пока соединение освободится;
// если транзакция уже открыта, ожидание было бы вечным и возвращается ErrTxInProgress.
func (n *Native) withStmt(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	if !n.runner.InTx(ctx) {
		if n.txOpen.Load() {
			return ErrTxInProgress
		}
		n.gate.Lock()
		defer n.gate.Unlock()
	}

	stmt, err := n.prepare(ctx, query)
	if err != nil {
		return err
	}
	return fn(stmt)
}

// prepare возвращает кэшированное выражение или компилирует новое на закреплённом соединении.
// Выражение соединения исполняется в открытой на нём транзакции.
func (n *Native) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if stmt, ok := n.stmts[query]; ok {
		n.hits.Add(1)
		return stmt, nil
	}

	stmt, err := n.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	n.stmts[query] = stmt
	n.compiles.Add(1)
	return stmt, nil
}

func (n *Native) fail(op, query string, err error) error {
	n.log.Error("native sqlite query failed",
		slog.String("op", op),
		slog.String("query", query),
		slog.Any("error", err),
	)
	return err
}

// Unavailable - нативный сервис при активном клиенте, отличном от sqlite.
// Все операции сразу возвращают ошибку с именем активного клиента.
type Unavailable struct {
	Client string
}

// Get всегда возвращает ошибку shared.ErrUnavailable.
func (u Unavailable) Get(context.Context, string, ...any) (Row, bool, error) {
	return nil, false, u.err("get")
}

// All всегда возвращает ошибку shared.ErrUnavailable.
func (u Unavailable) All(context.Context, string, ...any) ([]Row, error) {
	return nil, u.err("all")
}

// Run всегда возвращает ошибку shared.ErrUnavailable.
func (u Unavailable) Run(context.Context, string, ...any) (Result, error) {
	return Result{}, u.err("run")
}

// Transaction не вызывает fn и возвращает ошибку shared.ErrUnavailable.
func (u Unavailable) Transaction(context.Context, func(ctx context.Context) error) error {
	return u.err("transaction")
}

// Database возвращает nil: соединения нет.
func (u Unavailable) Database() *sql.Conn {
	return nil
}

// IsAvailable всегда false.
func (u Unavailable) IsAvailable() bool {
	return false
}

// Close ничего не освобождает и возвращает nil.
func (u Unavailable) Close() error {
	return nil
}

func (u Unavailable) err(op string) error {
	return fmt.Errorf("%w: native sqlite %s called but the active database client is %q; use the query-builder database service instead",
		shared.ErrUnavailable, op, u.Client)
}
