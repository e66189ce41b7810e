package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"huddle/pkg/db"
)

var ErrNoTransaction = errors.New("memory: lock requested outside a transaction")

type txKey struct{}

type tx struct {
	mu   sync.Mutex
	held map[string]bool
	keys []string
	undo []func()
}

func fromContext(ctx context.Context) (*tx, bool) {
	t, ok := ctx.Value(txKey{}).(*tx)
	return t, ok
}

// TransactionManager gives in-process stores the same shape as the database
// drivers: exclusive per-key locks held until the transaction ends, and an
// undo log replayed on rollback.
type TransactionManager struct {
	mu          sync.Mutex
	sems        map[string]chan struct{}
	lockTimeout time.Duration
}

func NewTransactionManager(lockTimeout time.Duration) *TransactionManager {
	return &TransactionManager{
		sems:        make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func (m *TransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) (err error) {
	if _, ok := fromContext(ctx); ok {
		return fn(ctx)
	}

	t := &tx{held: make(map[string]bool)}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			m.releaseAll(t)
			panic(r)
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, t))
	if err != nil {
		t.rollback()
	}
	m.releaseAll(t)
	return err
}

// Lock takes the exclusive lock for key on behalf of the transaction in ctx.
// It is reentrant within one transaction.
func (m *TransactionManager) Lock(ctx context.Context, key string) error {
	t, ok := fromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}

	t.mu.Lock()
	already := t.held[key]
	t.mu.Unlock()
	if already {
		return nil
	}

	if err := m.acquire(ctx, key); err != nil {
		return err
	}

	t.mu.Lock()
	t.held[key] = true
	t.keys = append(t.keys, key)
	t.mu.Unlock()
	return nil
}

// OnRollback registers an undo step for the transaction in ctx. Outside a
// transaction writes are final and the step is dropped.
func OnRollback(ctx context.Context, undo func()) {
	if t, ok := fromContext(ctx); ok {
		t.mu.Lock()
		t.undo = append(t.undo, undo)
		t.mu.Unlock()
	}
}

func (m *TransactionManager) sem(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		m.sems[key] = s
	}
	return s
}

func (m *TransactionManager) acquire(ctx context.Context, key string) error {
	s := m.sem(key)

	var expired <-chan time.Time
	if m.lockTimeout > 0 {
		timer := time.NewTimer(m.lockTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case s <- struct{}{}:
		return nil
	case <-expired:
		return db.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *TransactionManager) releaseAll(t *tx) {
	t.mu.Lock()
	keys := t.keys
	t.keys = nil
	t.held = map[string]bool{}
	t.mu.Unlock()

	for i := len(keys) - 1; i >= 0; i-- {
		<-m.sem(keys[i])
	}
}

func (t *tx) rollback() {
	t.mu.Lock()
	undo := t.undo
	t.undo = nil
	t.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// Ping always succeeds; it lets the memory driver back readiness checks.
func (m *TransactionManager) Ping(context.Context) error {
	return nil
}
