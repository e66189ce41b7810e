package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidState    = errors.New("invalid state")
)

// RuleError is returned when an entity rejects a construction or transition.
// It unwraps to one of the Err* kinds above.
type RuleError struct {
	kind error
	msg  string
}

func (e *RuleError) Error() string {
	return e.msg
}

func (e *RuleError) Unwrap() error {
	return e.kind
}

func ruleError(kind error, format string, args ...any) error {
	return &RuleError{kind: kind, msg: fmt.Sprintf(format, args...)}
}
