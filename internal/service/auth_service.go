package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
	"github.com/yourusername/eduquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
	"github.com/yourusername/eduquiz-api/pkg/auth"
)

// AuthService orchestrates registration and login: credential check, lockout
// consultation, session token issuance.
type AuthService struct {
	userRepo   repository.UserRepository
	lockout    *LockoutEngine
	jwtService *auth.JWTService

	// verification is optional; when present, creating an account triggers a
	// best-effort verification-code issuance.
	verification *VerificationService
}

func NewAuthService(
	userRepo repository.UserRepository,
	lockout *LockoutEngine,
	jwtService *auth.JWTService,
	verification *VerificationService,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if lockout == nil {
		return nil, fmt.Errorf("LockoutEngine is required for AuthService")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for AuthService")
	}

	return &AuthService{
		userRepo:     userRepo,
		lockout:      lockout,
		jwtService:   jwtService,
		verification: verification,
	}, nil
}

// RegisterInput carries the self-registration request. Any role hint a client
// sends is ignored; self-registered accounts are always students.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// LoginResult carries the session issued for a verified, unlocked account.
type LoginResult struct {
	User        *entity.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
}

// Register creates an unverified student account. Validation and conflict
// checks run before any state mutation. No session is issued; the caller must
// complete the email-verification cycle first.
func (s *AuthService) Register(input RegisterInput, settings SecuritySettings) (*entity.User, error) {
	settings = settings.withDefaults()

	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	if !settings.AllowRegistration {
		return nil, fmt.Errorf("%w: registration is currently disabled", ErrRegistrationDisabled)
	}
	if input.Email == "" {
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if err := ValidatePassword(input.Password, settings.PasswordPolicy); err != nil {
		return nil, err
	}

	if settings.MaxUsers > 0 {
		total, err := s.userRepo.Count()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to count users: %v", apperrors.ErrDependency, err)
		}
		if total >= settings.MaxUsers {
			return nil, fmt.Errorf("%w: user limit reached", ErrUserLimitReached)
		}
	}

	_, err := s.userRepo.GetByEmail(input.Email)
	if err == nil {
		return nil, fmt.Errorf("%w: an account with this email already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: failed to check email existence: %v", apperrors.ErrDependency, err)
	}

	user := &entity.User{
		Email:    input.Email,
		Name:     input.Name,
		Password: input.Password,
		Role:     entity.RoleStudent,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("%w: failed to create user: %v", apperrors.ErrDependency, err)
	}

	log.Printf("[AuthService] user ID=%d (%s) registered, verification pending", user.ID, user.Email)
	s.issueVerificationCodeBestEffort(user)

	return user, nil
}

// Login authenticates a user and issues a session token. The lockout engine
// runs first, before any credential comparison; a matching password on an
// unverified account resets the failure counters but still refuses a session.
func (s *AuthService) Login(email, password string, settings SecuritySettings) (*LoginResult, error) {
	settings = settings.withDefaults()
	email = normalizeEmail(email)
	now := time.Now()

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AuthService] login for unknown email %s", email)
			return nil, fmt.Errorf("%w: invalid email or password", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%w: failed to load user: %v", apperrors.ErrDependency, err)
	}

	if err := s.lockout.Resolve(user, now); err != nil {
		return nil, err
	}

	if !user.CheckPassword(password) {
		return nil, s.lockout.OnFailure(user, settings, now)
	}

	if err := s.lockout.OnSuccess(user); err != nil {
		return nil, err
	}

	if !user.EmailVerified {
		return nil, fmt.Errorf("%w: verify your email before logging in", ErrEmailNotVerified)
	}

	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("[AuthService] failed to generate token for user ID=%d: %v", user.ID, err)
		return nil, fmt.Errorf("%w: failed to issue session token: %v", apperrors.ErrDependency, err)
	}

	log.Printf("[AuthService] user ID=%d (%s) logged in", user.ID, user.Email)
	return &LoginResult{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtService.Expiry().Seconds()),
	}, nil
}

// CreatePrivilegedUser is the administrative path for creating teacher
// accounts. Role "admin" is normalized to "teacher" for backward
// compatibility; anything other than student/teacher/admin is rejected.
// The account starts unverified and a verification code is issued as a
// side effect; a notification failure there is logged, never propagated.
func (s *AuthService) CreatePrivilegedUser(email, name, password, role string, settings SecuritySettings) (*entity.User, error) {
	settings = settings.withDefaults()

	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	switch role {
	case entity.RoleStudent, entity.RoleTeacher:
	case entity.RoleAdmin:
		role = entity.RoleTeacher
	default:
		return nil, fmt.Errorf("%w: invalid role %q", apperrors.ErrValidation, role)
	}

	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: email and name are required", apperrors.ErrValidation)
	}
	if err := ValidatePassword(password, settings.PasswordPolicy); err != nil {
		return nil, err
	}

	_, err := s.userRepo.GetByEmail(email)
	if err == nil {
		return nil, fmt.Errorf("%w: an account with this email already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: failed to check email existence: %v", apperrors.ErrDependency, err)
	}

	user := &entity.User{
		Email:    email,
		Name:     name,
		Password: password,
		Role:     role,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("%w: failed to create user: %v", apperrors.ErrDependency, err)
	}

	log.Printf("[AuthService] privileged user ID=%d (%s) created with role=%s", user.ID, user.Email, user.Role)
	s.issueVerificationCodeBestEffort(user)

	return user, nil
}

// GetUserByID returns the account for a session's subject.
func (s *AuthService) GetUserByID(userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(userID)
}

// issueVerificationCodeBestEffort fires the email-verification cycle after an
// account was created. The account is valid either way; the user or an admin
// can trigger a resend later.
func (s *AuthService) issueVerificationCodeBestEffort(user *entity.User) {
	if s.verification == nil {
		return
	}
	if err := s.verification.RequestEmailVerification(user.Email); err != nil {
		log.Printf("[AuthService] failed to issue verification code for user ID=%d: %v", user.ID, err)
	}
}

// normalizeEmail lowercases and trims; email identity is case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
