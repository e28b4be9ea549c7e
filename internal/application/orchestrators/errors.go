package orchestrators

import "errors"

// Sentinel errors shared across orchestrators.
var (
	// ErrQuotaExhausted means today's send allowance is used up. Callers
	// that can defer work should enqueue instead of failing.
	ErrQuotaExhausted = errors.New("daily email quota exhausted")

	// ErrQuotaUnavailable means the quota counter could not be read. The
	// tracker fails closed, so this blocks sending the same way exhaustion
	// does.
	ErrQuotaUnavailable = errors.New("daily email quota unavailable")

	// ErrDuplicateSubmission means a payment submission matched an
	// already-receipted one and no receipt will be issued for it.
	ErrDuplicateSubmission = errors.New("duplicate payment submission")
)

// ValidationError wraps a bad-input failure. Deliveries that fail with a
// ValidationError are not retryable: re-sending the same input cannot
// succeed, so queue processing records them as failed without re-enqueueing.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps err as non-retryable input validation failure.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
