package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
)

// ============================================================================
// Mocks shared by the service tests
// ============================================================================

// MockUserRepository implements repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Count() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) RecordFailedLogin(userID uint, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	args := m.Called(userID, maxAttempts, lockUntil)
	var locked *time.Time
	if args.Get(1) != nil {
		locked = args.Get(1).(*time.Time)
	}
	return args.Int(0), locked, args.Error(2)
}

func (m *MockUserRepository) ResetLockout(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockUserRepository) MarkEmailVerified(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(userID uint, newPassword string) error {
	args := m.Called(userID, newPassword)
	return args.Error(0)
}

// MockOTPChallengeRepository implements repository.OTPChallengeRepository
type MockOTPChallengeRepository struct {
	mock.Mock
}

func (m *MockOTPChallengeRepository) Create(challenge *entity.OTPChallenge) error {
	args := m.Called(challenge)
	return args.Error(0)
}

func (m *MockOTPChallengeRepository) FindActive(email, purpose string, now time.Time) (*entity.OTPChallenge, error) {
	args := m.Called(email, purpose, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.OTPChallenge), args.Error(1)
}

func (m *MockOTPChallengeRepository) CountRecent(email, purpose string, since time.Time) (int64, error) {
	args := m.Called(email, purpose, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOTPChallengeRepository) ResetForReissue(id uint, code string, expiresAt time.Time) error {
	args := m.Called(id, code, expiresAt)
	return args.Error(0)
}

func (m *MockOTPChallengeRepository) IncrementAttempts(id uint) (int, error) {
	args := m.Called(id)
	return args.Int(0), args.Error(1)
}

func (m *MockOTPChallengeRepository) MarkVerified(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockOTPChallengeRepository) DeleteOthers(email, purpose string, keepID uint) error {
	args := m.Called(email, purpose, keepID)
	return args.Error(0)
}

// MockEmailSender implements EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, code, idempotencyKey)
	return args.Error(0)
}

func (m *MockEmailSender) SendPasswordResetCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, code, idempotencyKey)
	return args.Error(0)
}

func (m *MockEmailSender) SendPasswordChangedConfirmation(ctx context.Context, toEmail, name string) error {
	args := m.Called(ctx, toEmail, name)
	return args.Error(0)
}

func (m *MockEmailSender) SendWelcome(ctx context.Context, toEmail, name string) error {
	args := m.Called(ctx, toEmail, name)
	return args.Error(0)
}
