package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"laju/internal/config"
	"laju/internal/shared"
)

// Conn - соединение query-builder: пул sqlx и дескриптор, по которому он открыт.
type Conn struct {
	DB         *sqlx.DB
	Descriptor config.Descriptor
	Stage      config.Stage
}

// Ping проверяет доступность базы, ожидая не дольше таймаута захвата соединения.
func (c *Conn) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.Descriptor.Pool.AcquireTimeout)
	defer cancel()

	if err := c.DB.PingContext(ctx); err != nil {
		return classify(c.Descriptor, fmt.Errorf("failed to ping %s database: %w", c.Descriptor.Client, err))
	}
	return nil
}

// Acquire закрепляет одно соединение пула. Вызывающий должен закрыть его.
func (c *Conn) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Descriptor.Pool.AcquireTimeout)
	defer cancel()

	conn, err := c.DB.Connx(ctx)
	if err != nil {
		return nil, classify(c.Descriptor, fmt.Errorf("failed to acquire %s connection: %w", c.Descriptor.Client, err))
	}
	return conn, nil
}

// Close закрывает пул.
func (c *Conn) Close() error {
	return c.DB.Close()
}

// classify помечает ошибку доступа к базе: истёкший срок - KindTimeout,
// отказ сетевого бэкенда - KindDependencyFailure. Ошибки sqlite не помечаются.
func classify(desc config.Descriptor, err error) error {
	if shared.IsTimeout(err) {
		return shared.MarkKind(err, shared.KindTimeout)
	}
	if desc.IsSQLite() {
		return err
	}
	return shared.MarkKind(err, shared.KindDependencyFailure)
}
