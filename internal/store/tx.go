package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/thinkgraph/internal/metrics"
)

// Querier is the read surface shared by *Store and *Tx.
// Row helpers accept it so the same scan code serves both paths.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*Store)(nil)
	_ Querier = (*Tx)(nil)
)

// Tx is the handle passed to a WithTx callback.
// It is only valid for the duration of the callback; after commit or
// rollback every method returns sql.ErrTxDone.
type Tx struct {
	tx *sql.Tx
}

// ExecContext executes a parameterized statement inside the unit of work.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryContext executes a query inside the unit of work.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a single-row query inside the unit of work.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn inside one atomic unit of work.
//
// The transaction commits if fn returns nil. If fn returns an error the
// transaction is rolled back and the error is returned unchanged; if fn
// panics the transaction is rolled back and the panic is re-raised.
// Nested calls are not supported: fn must use the Tx it is given.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	defer func() { metrics.TxDuration.Observe(time.Since(start).Seconds()) }()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = sqlTx.Rollback()
		metrics.TxRollbacks.Inc()
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true

	return nil
}
