package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

type txKey struct{}

// Transactor implements database.Transactor on a pgx pool. A call nested in
// an open transaction runs as a savepoint of it.
type Transactor struct {
	db *database.DB
}

func NewTransactor(db *database.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if outer, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return runTx(ctx, func(ctx context.Context) (pgx.Tx, error) { return outer.Begin(ctx) }, fn)
	}
	return runTx(ctx, t.db.BeginTx, fn)
}

// runTx begins a transaction, hands fn a context carrying it, and commits
// or rolls back on fn's result.
func runTx(ctx context.Context, begin func(context.Context) (pgx.Tx, error), fn func(txCtx context.Context) error) error {
	tx, err := begin(ctx)
	if err != nil {
		return database.MapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.MapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// GetQuerier returns either transaction or pool
// Used in repositories to support both transactional and non-transactional operations
func GetQuerier(ctx context.Context, db *database.DB) database.Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}

// requireTx guards operations that take row locks.
func requireTx(ctx context.Context) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); !ok {
		return database.ErrNoTransaction
	}
	return nil
}
