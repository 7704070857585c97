package service

import "errors"

// Auth flow specific errors used by handlers for stable error_type mapping.
// Messages are snake_case on purpose; handlers surface them verbatim as
// error_type while choosing the user-facing text themselves.
var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrAccountLocked        = errors.New("account_locked")
	ErrEmailNotVerified     = errors.New("email_not_verified")
	ErrRegistrationDisabled = errors.New("registration_disabled")
	ErrUserLimitReached     = errors.New("user_limit_reached")

	ErrRateLimited          = errors.New("rate_limited")
	ErrInvalidOrExpiredCode = errors.New("invalid_or_expired_code")
	ErrTooManyAttempts      = errors.New("too_many_attempts")
	ErrEmailDeliveryFailed  = errors.New("email_delivery_failed")
)
