package obs

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks malformed engine input. It is never retried.
	ErrPrecondition = errors.New("obs: precondition violated")

	// ErrInvariantViolation is returned when a normalized tensor holds a value
	// outside [Under, Over]. It signals a defect in feature computation.
	ErrInvariantViolation = errors.New("obs: normalized value outside sentinel band")
)

// PreconditionError describes which input was malformed.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("obs: %s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

func precondition(op, format string, args ...any) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
