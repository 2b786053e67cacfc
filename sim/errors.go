package sim

import (
	"errors"
	"fmt"
)

// Contract violations. The scheduler panics with these (wrapped with the
// offending values) rather than correcting the input.
var (
	ErrNegativeDuration    = errors.New("sim: negative duration")
	ErrTimeInPast          = errors.New("sim: time is in the past")
	ErrDeadlineNotInFuture = errors.New("sim: deadline is not in the future")
	ErrInvalidTime         = errors.New("sim: invalid time")
	ErrNotInProcess        = errors.New("sim: not called from a running process")
)

// Errors returned by Run and Close.
var (
	ErrAlreadyRunning = errors.New("sim: scheduler is already running")
	ErrClosed         = errors.New("sim: scheduler is closed")
)

// A ProcessPanic carries a panic raised inside a process body to the
// goroutine that called Run.
type ProcessPanic struct {
	Proc  *Proc
	Value any
	Stack []byte
}

func (e *ProcessPanic) Error() string {
	return fmt.Sprintf("sim: process %s panicked: %v\n%s",
		e.Proc.Name(), e.Value, e.Stack)
}

// Unwrap returns the panic value if it is an error.
func (e *ProcessPanic) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func violation(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}
