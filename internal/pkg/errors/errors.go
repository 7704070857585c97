package errors

import "errors"

// Application-wide sentinel errors. Services wrap these with fmt.Errorf("%w: detail")
// so handlers can classify failures with errors.Is without parsing messages.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned for authentication failures (bad credentials, bad token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks the rights for an action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for state conflicts such as duplicate registrations.
	ErrConflict = errors.New("resource state conflict")

	// ErrDependency is returned when the record store or an external adapter fails.
	// Login and OTP requests that hit it fail closed.
	ErrDependency = errors.New("dependency failure")
)
