package service

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
	"github.com/yourusername/eduquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
)

// OTPEngine issues, reissues and verifies one-time codes for (email, purpose)
// and enforces the per-identity issuance rate limit. Expiry is evaluated lazily
// at read time; no background sweeps exist.
type OTPEngine struct {
	challenges repository.OTPChallengeRepository

	codeTTL           time.Duration
	maxVerifyAttempts int
	rateWindow        time.Duration
	maxCodesPerWindow int
}

func NewOTPEngine(
	challenges repository.OTPChallengeRepository,
	codeTTL time.Duration,
	maxVerifyAttempts int,
	rateWindow time.Duration,
	maxCodesPerWindow int,
) (*OTPEngine, error) {
	if challenges == nil {
		return nil, fmt.Errorf("OTPChallengeRepository is required for OTPEngine")
	}
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	if maxVerifyAttempts <= 0 {
		maxVerifyAttempts = 3
	}
	if rateWindow <= 0 {
		rateWindow = 60 * time.Minute
	}
	if maxCodesPerWindow <= 0 {
		maxCodesPerWindow = 3
	}

	return &OTPEngine{
		challenges:        challenges,
		codeTTL:           codeTTL,
		maxVerifyAttempts: maxVerifyAttempts,
		rateWindow:        rateWindow,
		maxCodesPerWindow: maxCodesPerWindow,
	}, nil
}

// RequestCode issues a fresh code for (email, purpose). When a challenge is
// still active its code is overwritten in place and its counters reset, so any
// in-flight verification against the old code is moot; otherwise a new record
// is created. The rate limit counts every challenge created inside the rolling
// window, expired and verified ones included, and applies whether or not an
// active challenge exists.
//
// The returned challenge carries the plaintext code; the caller is responsible
// for handing it to the notification sender and for surfacing a send failure
// without deleting the record.
func (e *OTPEngine) RequestCode(email, purpose string) (*entity.OTPChallenge, error) {
	now := time.Now()

	recent, err := e.challenges.CountRecent(email, purpose, now.Add(-e.rateWindow))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count recent challenges: %v", apperrors.ErrDependency, err)
	}
	if recent >= int64(e.maxCodesPerWindow) {
		log.Printf("[OTPEngine] rate limit hit for email=%s purpose=%s (%d codes in window)", email, purpose, recent)
		return nil, fmt.Errorf("%w: too many codes requested, try again later", ErrRateLimited)
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	active, err := e.challenges.FindActive(email, purpose, now)
	switch {
	case err == nil:
		if err := e.challenges.ResetForReissue(active.ID, code, now.Add(e.codeTTL)); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				// Verified or purged between the lookup and the update; fall
				// through to a fresh record.
				break
			}
			return nil, fmt.Errorf("%w: failed to reissue challenge: %v", apperrors.ErrDependency, err)
		}
		active.Code = code
		active.ExpiresAt = now.Add(e.codeTTL)
		active.Attempts = 0
		return active, nil
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return nil, fmt.Errorf("%w: failed to look up active challenge: %v", apperrors.ErrDependency, err)
	}

	challenge := &entity.OTPChallenge{
		Email:     email,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: now.Add(e.codeTTL),
	}
	if err := e.challenges.Create(challenge); err != nil {
		return nil, fmt.Errorf("%w: failed to create challenge: %v", apperrors.ErrDependency, err)
	}
	return challenge, nil
}

// VerifyCode checks code against the active challenge for (email, purpose).
//
// The attempt is counted and persisted before the cap and the code are
// examined, and the cap is checked before correctness: a correct code on the
// attempt that reaches the cap still fails. That ordering bounds brute force
// at exactly maxVerifyAttempts guesses per challenge.
//
// A missing, expired or already verified challenge and a wrong code are all
// reported as ErrInvalidOrExpiredCode so the caller cannot tell them apart.
func (e *OTPEngine) VerifyCode(email, purpose, code string) error {
	now := time.Now()

	challenge, err := e.challenges.FindActive(email, purpose, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: no valid code for this request", ErrInvalidOrExpiredCode)
		}
		return fmt.Errorf("%w: failed to look up challenge: %v", apperrors.ErrDependency, err)
	}

	attempts, err := e.challenges.IncrementAttempts(challenge.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to record verification attempt: %v", apperrors.ErrDependency, err)
	}

	if attempts >= e.maxVerifyAttempts {
		log.Printf("[OTPEngine] attempts exhausted for email=%s purpose=%s challenge ID=%d", email, purpose, challenge.ID)
		return fmt.Errorf("%w: verification attempts exhausted", ErrTooManyAttempts)
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		return fmt.Errorf("%w: code does not match", ErrInvalidOrExpiredCode)
	}

	if err := e.challenges.MarkVerified(challenge.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Lost a race with another verification of the same challenge.
			return fmt.Errorf("%w: no valid code for this request", ErrInvalidOrExpiredCode)
		}
		return fmt.Errorf("%w: failed to mark challenge verified: %v", apperrors.ErrDependency, err)
	}

	if err := e.challenges.DeleteOthers(email, purpose, challenge.ID); err != nil {
		// The verification itself is durable; a failed purge only leaves
		// terminal rows behind.
		log.Printf("[OTPEngine] failed to purge sibling challenges for email=%s purpose=%s: %v", email, purpose, err)
	}
	return nil
}

// generateCode returns a 6-digit code drawn uniformly from [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
