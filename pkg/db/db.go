package db

import (
	"context"
	"errors"
)

var (
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrExclusionViolation = errors.New("exclusion constraint violated")
	ErrLockTimeout        = errors.New("lock wait timed out")
	ErrStaleVersion       = errors.New("stale version")
)

// TransactionFunc runs inside a transaction. Repositories pick the
// transaction up from ctx, so the same repository methods work in and out of
// a transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

// Pinger is implemented by every store driver and used by readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
