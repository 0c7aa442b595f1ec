package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrPreconditionNotMet is wrapped by every error a caller provokes by asking
// a record to do something it is not in a state to do. The record is left
// untouched when such an error is returned.
var ErrPreconditionNotMet = errors.New("precondition not met")

// InvariantViolation is the panic value raised when engine-internal state is
// inconsistent: a payload read under the wrong variant, a write to a slot in
// the wrong state, an allocation inside a no-allocation region. It is never
// returned as an error and never retried.
type InvariantViolation struct {
	Op     string
	Detail string
}

// Error implements error so recovered values print sensibly.
func (e *InvariantViolation) Error() string {
	return e.Op + ": " + e.Detail
}

// invariant builds the panic value. Call sites write panic(invariant(...))
// so the compiler sees the terminating statement.
func invariant(op, format string, args ...any) *InvariantViolation {
	return &InvariantViolation{Op: op, Detail: fmt.Sprintf(format, args...)}
}

func precondition(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrPreconditionNotMet)
}
