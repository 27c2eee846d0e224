package idempotency

import (
	"errors"
	"fmt"
)

// ErrNilOperation is returned when Execute is called without an operation.
var ErrNilOperation = errors.New("idempotency: operation is nil")

// ValidationError indicates a malformed idempotency key. Keys must be
// UUID v4 strings.
type ValidationError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("idempotency: invalid key %q: %s", e.Key, e.Reason)
}
