package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"huddle/pkg/db"
	apperrors "huddle/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

type transactionManager struct {
	client      *mongo.Client
	lockTimeout time.Duration
}

// NewTransactionManager runs callbacks in a session transaction. Conflicting
// writes on the same document abort one side, and the driver retries it, so
// writing a document inside the callback serializes writers on that document.
// lockTimeout bounds the whole attempt including retries.
func NewTransactionManager(client *mongo.Client, lockTimeout time.Duration) db.TransactionManager {
	return &transactionManager{
		client:      client,
		lockTimeout: lockTimeout,
	}
}

func (m *transactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	txCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.lockTimeout > 0 {
		txCtx, cancel = context.WithTimeout(ctx, m.lockTimeout)
	}
	defer cancel()

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(txCtx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %v", db.ErrLockTimeout, err)
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
