package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
	"github.com/yourusername/eduquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
)

const emailSendTimeout = 10 * time.Second

// VerificationService wraps the OTP engine for the two challenge purposes:
// email verification and password reset. Primary code delivery is synchronous
// and its failure is reported to the caller; welcome and password-changed
// confirmations are dispatched asynchronously and never fail a request.
type VerificationService struct {
	userRepo repository.UserRepository
	otp      *OTPEngine
	emails   EmailSender

	// sendAsync dispatches best-effort notifications. Tests replace it with a
	// synchronous version.
	sendAsync func(fn func())
}

func NewVerificationService(
	userRepo repository.UserRepository,
	otp *OTPEngine,
	emails EmailSender,
) (*VerificationService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for VerificationService")
	}
	if otp == nil {
		return nil, fmt.Errorf("OTPEngine is required for VerificationService")
	}
	if emails == nil {
		return nil, fmt.Errorf("EmailSender is required for VerificationService")
	}

	return &VerificationService{
		userRepo:  userRepo,
		otp:       otp,
		emails:    emails,
		sendAsync: func(fn func()) { go fn() },
	}, nil
}

// RequestEmailVerification issues (or reissues) a verification code and sends
// it to the account's email. A send failure is surfaced distinctly from a
// generation failure, and the challenge record survives it: the issued code
// still counts toward the rate-limit window and can be verified if it reached
// the user through other means.
func (s *VerificationService) RequestEmailVerification(email string) error {
	email = normalizeEmail(email)

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: no account with this email", apperrors.ErrNotFound)
		}
		return fmt.Errorf("%w: failed to load user: %v", apperrors.ErrDependency, err)
	}
	if user.EmailVerified {
		return nil
	}

	challenge, err := s.otp.RequestCode(email, entity.PurposeEmailVerification)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
	defer cancel()
	if err := s.emails.SendVerificationCode(ctx, email, challenge.Code, uuid.NewString()); err != nil {
		log.Printf("[VerificationService] failed to send verification code to %s: %v", email, err)
		return fmt.Errorf("%w: could not deliver the verification code", ErrEmailDeliveryFailed)
	}
	return nil
}

// ConfirmEmail verifies the code and marks the account's email verified.
// A welcome notification goes out best-effort afterwards.
func (s *VerificationService) ConfirmEmail(email, code string) error {
	email = normalizeEmail(email)
	if code == "" {
		return fmt.Errorf("%w: verification code is required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Same answer as a wrong code; confirming must not probe accounts.
			return fmt.Errorf("%w: no valid code for this request", ErrInvalidOrExpiredCode)
		}
		return fmt.Errorf("%w: failed to load user: %v", apperrors.ErrDependency, err)
	}
	if user.EmailVerified {
		return nil
	}

	if err := s.otp.VerifyCode(email, entity.PurposeEmailVerification, code); err != nil {
		return err
	}

	if err := s.userRepo.MarkEmailVerified(user.ID); err != nil {
		return fmt.Errorf("%w: failed to mark email verified: %v", apperrors.ErrDependency, err)
	}
	log.Printf("[VerificationService] email verified for user ID=%d (%s)", user.ID, user.Email)

	s.sendAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
		defer cancel()
		if err := s.emails.SendWelcome(ctx, user.Email, user.Name); err != nil {
			log.Printf("[VerificationService] failed to send welcome email to %s: %v", user.Email, err)
		}
	})
	return nil
}

// ForgotPassword starts the password-reset cycle. The answer is generic
// whether or not the email is registered; a code is only actually issued and
// sent when the account exists. Rate limiting applies exactly as for any
// other issuance.
func (s *VerificationService) ForgotPassword(email string) error {
	email = normalizeEmail(email)

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[VerificationService] password reset requested for unknown email %s", email)
			return nil
		}
		return fmt.Errorf("%w: failed to load user: %v", apperrors.ErrDependency, err)
	}

	challenge, err := s.otp.RequestCode(email, entity.PurposePasswordReset)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
	defer cancel()
	if err := s.emails.SendPasswordResetCode(ctx, user.Email, challenge.Code, uuid.NewString()); err != nil {
		log.Printf("[VerificationService] failed to send password reset code to %s: %v", email, err)
		return fmt.Errorf("%w: could not deliver the reset code", ErrEmailDeliveryFailed)
	}
	return nil
}

// ResetPassword verifies the reset code and replaces the credential hash
// wholesale. Remaining password-reset challenges for the email are purged by
// the verification step; a confirmation notification goes out best-effort.
func (s *VerificationService) ResetPassword(email, code, newPassword, policy string) error {
	email = normalizeEmail(email)
	if code == "" {
		return fmt.Errorf("%w: reset code is required", apperrors.ErrValidation)
	}
	if err := ValidatePassword(newPassword, policy); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: no valid code for this request", ErrInvalidOrExpiredCode)
		}
		return fmt.Errorf("%w: failed to load user: %v", apperrors.ErrDependency, err)
	}

	if err := s.otp.VerifyCode(email, entity.PurposePasswordReset, code); err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(user.ID, newPassword); err != nil {
		return fmt.Errorf("%w: failed to update password: %v", apperrors.ErrDependency, err)
	}
	log.Printf("[VerificationService] password reset completed for user ID=%d (%s)", user.ID, user.Email)

	s.sendAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
		defer cancel()
		if err := s.emails.SendPasswordChangedConfirmation(ctx, user.Email, user.Name); err != nil {
			log.Printf("[VerificationService] failed to send password changed confirmation to %s: %v", user.Email, err)
		}
	})
	return nil
}
