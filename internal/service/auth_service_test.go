package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
	"github.com/yourusername/eduquiz-api/pkg/auth"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func newTestAuthService(t *testing.T, users *MockUserRepository, verification *VerificationService) *AuthService {
	t.Helper()
	jwtService, err := auth.NewJWTService("test-secret", 1)
	require.NoError(t, err)

	svc, err := NewAuthService(users, newTestLockoutEngine(t, users), jwtService, verification)
	require.NoError(t, err)
	return svc
}

func TestAuthService_Register_Success(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	mockUsers.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	mockUsers.On("Create", mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*entity.User).ID = 1
		}).
		Return(nil)

	user, err := svc.Register(RegisterInput{
		Email:    "  New@Example.com ",
		Name:     "New User",
		Password: "password123",
	}, DefaultSecuritySettings())

	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, entity.RoleStudent, user.Role)
	assert.False(t, user.EmailVerified)
	mockUsers.AssertExpectations(t)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	mockUsers.On("GetByEmail", "taken@example.com").
		Return(&entity.User{ID: 2, Email: "taken@example.com"}, nil)

	user, err := svc.Register(RegisterInput{
		Email:    "taken@example.com",
		Name:     "Someone",
		Password: "password123",
	}, DefaultSecuritySettings())

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	mockUsers.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAuthService_Register_Disabled(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	settings := DefaultSecuritySettings()
	settings.AllowRegistration = false

	user, err := svc.Register(RegisterInput{
		Email:    "new@example.com",
		Name:     "New User",
		Password: "password123",
	}, settings)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrRegistrationDisabled)
	mockUsers.AssertNotCalled(t, "GetByEmail", mock.Anything)
}

func TestAuthService_Register_UserLimitReached(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	settings := DefaultSecuritySettings()
	settings.MaxUsers = 2

	mockUsers.On("Count").Return(int64(2), nil)

	user, err := svc.Register(RegisterInput{
		Email:    "new@example.com",
		Name:     "New User",
		Password: "password123",
	}, settings)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrUserLimitReached)
	mockUsers.AssertNotCalled(t, "Create", mock.Anything)
}

// "abc123" has no symbol, so the strong policy rejects it while easy accepts it.
func TestAuthService_Register_PasswordPolicy(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	strong := DefaultSecuritySettings()
	strong.PasswordPolicy = PolicyStrong

	user, err := svc.Register(RegisterInput{
		Email:    "dana@example.com",
		Name:     "Dana",
		Password: "abc123",
	}, strong)
	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	easy := DefaultSecuritySettings()
	easy.PasswordPolicy = PolicyEasy

	mockUsers.On("GetByEmail", "dana@example.com").Return(nil, apperrors.ErrNotFound)
	mockUsers.On("Create", mock.AnythingOfType("*entity.User")).Return(nil)

	user, err = svc.Register(RegisterInput{
		Email:    "dana@example.com",
		Name:     "Dana",
		Password: "abc123",
	}, easy)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleStudent, user.Role)
}

// A failed code delivery after the account was created is logged and swallowed;
// registration still succeeds and the account exists.
func TestAuthService_Register_NotificationFailureDoesNotRollBack(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockChallenges := new(MockOTPChallengeRepository)
	mockEmails := new(MockEmailSender)

	created := &entity.User{ID: 1, Email: "new@example.com", Name: "New User"}

	mockUsers.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound).Once()
	mockUsers.On("GetByEmail", "new@example.com").Return(created, nil)
	mockUsers.On("Create", mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*entity.User).ID = 1
		}).
		Return(nil)

	mockChallenges.On("CountRecent", "new@example.com", entity.PurposeEmailVerification, mock.AnythingOfType("time.Time")).
		Return(int64(0), nil)
	mockChallenges.On("FindActive", "new@example.com", entity.PurposeEmailVerification, mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.ErrNotFound)
	mockChallenges.On("Create", mock.AnythingOfType("*entity.OTPChallenge")).Return(nil)

	mockEmails.On("SendVerificationCode", mock.Anything, "new@example.com", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(errors.New("smtp unavailable"))

	verification, err := NewVerificationService(mockUsers, newTestOTPEngine(t, mockChallenges), mockEmails)
	require.NoError(t, err)
	svc := newTestAuthService(t, mockUsers, verification)

	user, err := svc.Register(RegisterInput{
		Email:    "new@example.com",
		Name:     "New User",
		Password: "password123",
	}, DefaultSecuritySettings())

	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	mockEmails.AssertExpectations(t)
}

func TestAuthService_Login_Success(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	user := &entity.User{
		ID:            1,
		Email:         "alice@example.com",
		Password:      hashPassword(t, "correct-password"),
		Role:          entity.RoleStudent,
		EmailVerified: true,
	}
	mockUsers.On("GetByEmail", "alice@example.com").Return(user, nil)

	result, err := svc.Login("alice@example.com", "correct-password", DefaultSecuritySettings())

	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, 3600, result.ExpiresIn)
	assert.Equal(t, uint(1), result.User.ID)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	mockUsers.On("GetByEmail", "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	result, err := svc.Login("ghost@example.com", "whatever", DefaultSecuritySettings())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	user := &entity.User{
		ID:            1,
		Email:         "alice@example.com",
		Password:      hashPassword(t, "correct-password"),
		EmailVerified: true,
	}
	mockUsers.On("GetByEmail", "alice@example.com").Return(user, nil)
	mockUsers.On("RecordFailedLogin", uint(1), 5, mock.AnythingOfType("time.Time")).
		Return(1, nil, nil)

	result, err := svc.Login("alice@example.com", "wrong-password", DefaultSecuritySettings())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "4 attempt(s) remaining")
}

// A correct password on an unverified account resets the failure counters but
// still refuses the session.
func TestAuthService_Login_UnverifiedEmail(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	user := &entity.User{
		ID:                  1,
		Email:               "alice@example.com",
		Password:            hashPassword(t, "correct-password"),
		FailedLoginAttempts: 2,
	}
	mockUsers.On("GetByEmail", "alice@example.com").Return(user, nil)
	mockUsers.On("ResetLockout", uint(1)).Return(nil)

	result, err := svc.Login("alice@example.com", "correct-password", DefaultSecuritySettings())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrEmailNotVerified)
	assert.Equal(t, 0, user.FailedLoginAttempts)
	mockUsers.AssertCalled(t, "ResetLockout", uint(1))
}

// Five consecutive failures lock the account; a sixth attempt with the correct
// password is still rejected while the lock holds.
func TestAuthService_Login_ProgressiveLockout(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	user := &entity.User{
		ID:            1,
		Email:         "alice@example.com",
		Password:      hashPassword(t, "correct-password"),
		EmailVerified: true,
	}
	mockUsers.On("GetByEmail", "alice@example.com").Return(user, nil)

	lockedUntil := time.Now().Add(15 * time.Minute)
	for i := 1; i <= 5; i++ {
		var lock *time.Time
		if i >= 5 {
			lock = &lockedUntil
		}
		mockUsers.On("RecordFailedLogin", uint(1), 5, mock.AnythingOfType("time.Time")).
			Return(i, lock, nil).Once()
	}

	for i := 1; i <= 4; i++ {
		_, err := svc.Login("alice@example.com", "wrong-password", DefaultSecuritySettings())
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}

	_, err := svc.Login("alice@example.com", "wrong-password", DefaultSecuritySettings())
	assert.ErrorIs(t, err, ErrAccountLocked)
	require.NotNil(t, user.LockedUntil)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *user.LockedUntil, 2*time.Second)

	// Sixth attempt, correct password, lock still active.
	result, err := svc.Login("alice@example.com", "correct-password", DefaultSecuritySettings())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrAccountLocked)
	mockUsers.AssertExpectations(t)
}

// Once the lock has elapsed, a correct password logs in and the counter is back
// at zero.
func TestAuthService_Login_ExpiredLock(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	lockedUntil := time.Now().Add(-1 * time.Minute)
	user := &entity.User{
		ID:                  1,
		Email:               "alice@example.com",
		Password:            hashPassword(t, "correct-password"),
		EmailVerified:       true,
		FailedLoginAttempts: 5,
		LockedUntil:         &lockedUntil,
	}
	mockUsers.On("GetByEmail", "alice@example.com").Return(user, nil)
	mockUsers.On("ResetLockout", uint(1)).Return(nil)

	result, err := svc.Login("alice@example.com", "correct-password", DefaultSecuritySettings())

	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, 0, user.FailedLoginAttempts)
	assert.Nil(t, user.LockedUntil)
}

func TestAuthService_CreatePrivilegedUser_AdminBecomesTeacher(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	mockUsers.On("GetByEmail", "lead@example.com").Return(nil, apperrors.ErrNotFound)
	mockUsers.On("Create", mock.AnythingOfType("*entity.User")).Return(nil)

	user, err := svc.CreatePrivilegedUser("lead@example.com", "Lead", "password123", entity.RoleAdmin, DefaultSecuritySettings())

	require.NoError(t, err)
	assert.Equal(t, entity.RoleTeacher, user.Role)
}

func TestAuthService_CreatePrivilegedUser_InvalidRole(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	user, err := svc.CreatePrivilegedUser("lead@example.com", "Lead", "password123", "superuser", DefaultSecuritySettings())

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	mockUsers.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAuthService_CreatePrivilegedUser_DuplicateEmail(t *testing.T) {
	mockUsers := new(MockUserRepository)
	svc := newTestAuthService(t, mockUsers, nil)

	mockUsers.On("GetByEmail", "lead@example.com").
		Return(&entity.User{ID: 2, Email: "lead@example.com"}, nil)

	user, err := svc.CreatePrivilegedUser("lead@example.com", "Lead", "password123", entity.RoleTeacher, DefaultSecuritySettings())

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
