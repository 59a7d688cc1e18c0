package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - the target record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotBoundToAgent - the caller has no agent scope, so it cannot own
	// money movement. Fails closed.
	ErrNotBoundToAgent = errors.New("user is not bound to an agent")
	// ErrConflict - the (ref_type, ref_id, entry_type) idempotency fence
	// rejected a duplicate ledger entry. A concurrent caller already posted
	// this business event; retries should treat it as success.
	ErrConflict = errors.New("duplicate ledger entry")
	// ErrInvalidCredentials - login failed; never says which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError marks caller mistakes (bad amount, missing currency).
// Not retryable.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a caller-fault validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
