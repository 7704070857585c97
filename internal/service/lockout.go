package service

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
	"github.com/yourusername/eduquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
)

// LockoutEngine decides, for an account and a login outcome, the next values of
// failed_login_attempts and locked_until. It keeps no state between calls:
// expired locks are resolved lazily at the start of each login attempt, so no
// timers or background sweeps exist. Every persistence failure is surfaced as
// ErrDependency and the login fails closed.
type LockoutEngine struct {
	users repository.UserRepository
}

func NewLockoutEngine(users repository.UserRepository) (*LockoutEngine, error) {
	if users == nil {
		return nil, fmt.Errorf("UserRepository is required for LockoutEngine")
	}
	return &LockoutEngine{users: users}, nil
}

// Resolve runs before any credential comparison. A lock still in the future
// rejects the attempt outright; an elapsed lock is cleared in place (lazy
// unlock) together with the failure counter, and the attempt proceeds.
func (e *LockoutEngine) Resolve(user *entity.User, now time.Time) error {
	if user.LockedUntil == nil {
		return nil
	}
	if user.LockedUntil.After(now) {
		remaining := int(math.Ceil(user.LockedUntil.Sub(now).Minutes()))
		return fmt.Errorf("%w: try again in %d minute(s)", ErrAccountLocked, remaining)
	}

	if err := e.users.ResetLockout(user.ID); err != nil {
		log.Printf("[LockoutEngine] failed to clear expired lock for user ID=%d: %v", user.ID, err)
		return fmt.Errorf("%w: failed to clear expired lock: %v", apperrors.ErrDependency, err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return nil
}

// OnFailure records a failed credential check. The increment and the
// conditional lock happen in a single store update, so two concurrent failures
// cannot lose a count. Returns ErrAccountLocked when this failure crossed the
// threshold, ErrInvalidCredentials with the remaining tries otherwise.
func (e *LockoutEngine) OnFailure(user *entity.User, settings SecuritySettings, now time.Time) error {
	settings = settings.withDefaults()

	attempts, lockedUntil, err := e.users.RecordFailedLogin(user.ID, settings.MaxLoginAttempts, now.Add(settings.LockoutDuration))
	if err != nil {
		log.Printf("[LockoutEngine] failed to record failed login for user ID=%d: %v", user.ID, err)
		return fmt.Errorf("%w: failed to record login attempt: %v", apperrors.ErrDependency, err)
	}
	user.FailedLoginAttempts = attempts
	user.LockedUntil = lockedUntil

	if attempts >= settings.MaxLoginAttempts {
		log.Printf("[LockoutEngine] user ID=%d locked for %d minutes after %d failed attempts",
			user.ID, int(settings.LockoutDuration.Minutes()), attempts)
		return fmt.Errorf("%w: account locked for %d minute(s)", ErrAccountLocked, int(settings.LockoutDuration.Minutes()))
	}
	return fmt.Errorf("%w: %d attempt(s) remaining", ErrInvalidCredentials, settings.MaxLoginAttempts-attempts)
}

// OnSuccess resets the counters after a valid credential. The reset must be
// durable before the login is reported as successful.
func (e *LockoutEngine) OnSuccess(user *entity.User) error {
	if user.FailedLoginAttempts == 0 && user.LockedUntil == nil {
		return nil
	}
	if err := e.users.ResetLockout(user.ID); err != nil {
		log.Printf("[LockoutEngine] failed to reset lockout for user ID=%d: %v", user.ID, err)
		return fmt.Errorf("%w: failed to reset lockout state: %v", apperrors.ErrDependency, err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return nil
}
