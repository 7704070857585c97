package repository

import (
	"time"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
)

// UserRepository is the credential-store adapter: durable, unique-keyed storage
// for accounts and their lockout fields. Implementations translate their
// driver's not-found error to apperrors.ErrNotFound.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	Count() (int64, error)

	// RecordFailedLogin atomically increments failed_login_attempts and, when the
	// incremented value reaches maxAttempts, sets locked_until to lockUntil in the
	// same statement. It returns the post-increment counter and the lock timestamp
	// now on the record. Concurrent callers must not lose increments.
	RecordFailedLogin(userID uint, maxAttempts int, lockUntil time.Time) (attempts int, lockedUntil *time.Time, err error)

	// ResetLockout zeroes failed_login_attempts and clears locked_until.
	// Called on successful login and on lazy unlock of an elapsed lock.
	ResetLockout(userID uint) error

	MarkEmailVerified(userID uint) error

	// UpdatePassword hashes newPassword and replaces the stored hash wholesale.
	UpdatePassword(userID uint, newPassword string) error
}
