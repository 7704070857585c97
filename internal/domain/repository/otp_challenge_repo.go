package repository

import (
	"time"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
)

// OTPChallengeRepository is the challenge-store adapter for one-time codes.
// Implementations translate their driver's not-found error to apperrors.ErrNotFound.
type OTPChallengeRepository interface {
	Create(challenge *entity.OTPChallenge) error

	// FindActive returns the unverified, unexpired challenge for (email, purpose),
	// regardless of how many attempts it has consumed.
	FindActive(email, purpose string, now time.Time) (*entity.OTPChallenge, error)

	// CountRecent counts all challenges created for (email, purpose) since the
	// given instant, including expired and verified ones. Feeds the issuance
	// rate limit.
	CountRecent(email, purpose string, since time.Time) (int64, error)

	// ResetForReissue overwrites code/expires_at and zeroes attempts on the
	// challenge, conditional on it still being unverified. Returns
	// apperrors.ErrNotFound when the row was verified or deleted concurrently.
	ResetForReissue(id uint, code string, expiresAt time.Time) error

	// IncrementAttempts atomically bumps the attempt counter and returns the
	// post-increment value. The write is durable even when the surrounding
	// verification fails.
	IncrementAttempts(id uint) (int, error)

	// MarkVerified flips is_verified exactly once; a second call for the same
	// challenge returns apperrors.ErrNotFound.
	MarkVerified(id uint) error

	// DeleteOthers purges every challenge for (email, purpose) except keepID.
	// Called after a successful verification.
	DeleteOthers(email, purpose string, keepID uint) error
}
