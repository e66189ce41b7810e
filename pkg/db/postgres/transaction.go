package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"huddle/pkg/db"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type Executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Conn returns the transaction carried by ctx, or the pool when there is none.
func Conn(ctx context.Context, pool *sqlx.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return pool
}

func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

type transactionManager struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewTransactionManager runs callbacks in a READ COMMITTED transaction.
// Row locks taken with SELECT ... FOR UPDATE wait at most lockTimeout.
func NewTransactionManager(pool *sqlx.DB, lockTimeout time.Duration) db.TransactionManager {
	return &transactionManager{
		db:          pool,
		lockTimeout: lockTimeout,
	}
}

func (m *transactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if m.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return Classify(err, "commit")
	}
	committed = true
	return nil
}
