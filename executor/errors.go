package executor

import (
	"context"
	"errors"
)

// ExecutionError wraps a driver error raised while running a statement.
// Cancellation surfaces here too; only the driver's text tells them apart.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Cancelled reports whether the statement's context was cancelled.
func (e *ExecutionError) Cancelled() bool {
	return errors.Is(e.Err, context.Canceled)
}
