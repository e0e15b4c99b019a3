package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// ErrTxUnsupported reports that the store cannot group multiple writes into
// one atomic unit. Callers fall back to sequential execution with explicit
// compensation.
var ErrTxUnsupported = errors.New("db: transactional grouping unsupported")

// WithTxContext returns a child context carrying tx. Repositories route
// their statements through the carried transaction when present.
func WithTxContext(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// TxFromContext retrieves the transaction carried in ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// TxManager groups multiple repository writes into one all-or-nothing unit.
// RunInTx returns ErrTxUnsupported when the store cannot provide that
// guarantee, without having executed fn.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTxManager is the pgx implementation of TxManager.
type PoolTxManager struct {
	pool *pgxpool.Pool
}

func NewPoolTxManager(pool *pgxpool.Pool) *PoolTxManager {
	return &PoolTxManager{pool: pool}
}

func (m *PoolTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		if isTxUnsupported(err) {
			return ErrTxUnsupported
		}
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(WithTxContext(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// isTxUnsupported recognizes the store's "grouping unsupported" signature
// (SQLSTATE 0A000, feature_not_supported).
func isTxUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "0A000"
}
