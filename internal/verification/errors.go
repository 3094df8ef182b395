package verification

import "errors"

// Outcomes of StartCycle and SubmitCode. Every error returned by a Machine
// wraps exactly one of these, except errors produced by a Flow guard, which
// are returned untouched.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("subject not found")
	ErrNoPendingCycle = errors.New("no verification in progress")
	ErrInvalidCode    = errors.New("invalid verification code")
	ErrExpired        = errors.New("verification code has expired")
	ErrDeliveryFailed = errors.New("verification code could not be delivered")
	ErrUnknown        = errors.New("unexpected verification failure")
)

// Repository errors. ErrNoRecord: no subject matches an identity or id.
// ErrRecordExists: Create found a subject already stored for the identity.
var (
	ErrNoRecord     = errors.New("verification: no record")
	ErrRecordExists = errors.New("verification: record exists")
)

// outcome names an error for metrics and span attributes.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoPendingCycle):
		return "no_pending_cycle"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrUnknown):
		return "unknown"
	default:
		return "rejected"
	}
}

type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrValidation }

// InvalidInput returns an error that reads as msg and matches ErrValidation.
func InvalidInput(msg string) error {
	return &inputError{msg: msg}
}
