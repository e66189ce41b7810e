package postgres

import (
	"errors"
	"fmt"

	"huddle/pkg/db"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeExclusionViolation   pq.ErrorCode = "23P01"
	codeLockNotAvailable     pq.ErrorCode = "55P03"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeSerializationFailure pq.ErrorCode = "40001"
)

// Classify maps SQLSTATE codes onto the storage sentinels in package db.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w (constraint %s)", op, db.ErrDuplicateKey, pqErr.Constraint)
		case codeExclusionViolation:
			return fmt.Errorf("%s: %w (constraint %s)", op, db.ErrExclusionViolation, pqErr.Constraint)
		case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
			return fmt.Errorf("%s: %w (%s)", op, db.ErrLockTimeout, pqErr.Code.Name())
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
