package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/eduquiz-api/internal/config"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
	"github.com/yourusername/eduquiz-api/internal/service"
)

// AuthHandler exposes the account-security flows over HTTP.
type AuthHandler struct {
	authService         *service.AuthService
	verificationService *service.VerificationService
	cfg                 *config.Config
}

func NewAuthHandler(
	authService *service.AuthService,
	verificationService *service.VerificationService,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		authService:         authService,
		verificationService: verificationService,
		cfg:                 cfg,
	}
}

// Request DTOs

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6"`
	NewPassword string `json:"new_password" binding:"required,max=100"`
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,max=100"`
	Role     string `json:"role" binding:"required"`
}

// securitySettings snapshots the mutable configuration for one call into the
// explicit settings object the services take.
func (h *AuthHandler) securitySettings() service.SecuritySettings {
	return service.SecuritySettings{
		MaxLoginAttempts:  h.cfg.Auth.MaxLoginAttempts,
		LockoutDuration:   time.Duration(h.cfg.Auth.LockoutMinutes) * time.Minute,
		PasswordPolicy:    h.cfg.Auth.PasswordPolicy,
		AllowRegistration: h.cfg.Auth.AllowRegistration,
		MaxUsers:          h.cfg.Auth.MaxUsers,
	}
}

// Register handles self-registration. No session is issued; the client is
// told a verification code is on its way.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	user, err := h.authService.Register(service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}, h.securitySettings())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":                  user,
		"requires_verification": true,
		"message":               "Account created. Check your email for a verification code.",
	})
}

// Login authenticates a user and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	result, err := h.authService.Login(req.Email, req.Password, h.securitySettings())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RequestVerificationCode issues (or reissues) an email-verification code.
// Resends go through the same path and the same rate limit.
func (h *AuthHandler) RequestVerificationCode(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	if err := h.verificationService.RequestEmailVerification(req.Email); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent."})
}

// VerifyEmail confirms an email-verification code.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	if err := h.verificationService.ConfirmEmail(req.Email, req.Code); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified. You can now log in."})
}

// ForgotPassword starts the password-reset cycle. The response is the same
// whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	if err := h.verificationService.ForgotPassword(req.Email); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "If an account exists for this email, a reset code has been sent."})
}

// ResetPassword completes the password-reset cycle.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	if err := h.verificationService.ResetPassword(req.Email, req.Code, req.NewPassword, h.cfg.Auth.PasswordPolicy); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated. You can now log in with your new password."})
}

// Me returns the sanitized account of the session's subject.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetUint("user_id")
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateUser is the administrative path for creating teacher accounts.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	user, err := h.authService.CreatePrivilegedUser(req.Email, req.Name, req.Password, req.Role, h.securitySettings())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// handleServiceError maps service sentinels to HTTP statuses and stable
// error_type strings. The two OTP failure modes share one message and one
// error_type so the protocol boundary cannot be used to tell a wrong code
// from an expired or exhausted one; the internal distinction is logged.
func (h *AuthHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "error_type": "not_found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "error_type": "invalid_credentials"})
	case errors.Is(err, service.ErrAccountLocked):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error(), "error_type": "account_locked"})
	case errors.Is(err, service.ErrEmailNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "error_type": "email_not_verified"})
	case errors.Is(err, service.ErrRegistrationDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "error_type": "registration_disabled"})
	case errors.Is(err, service.ErrUserLimitReached):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "error_type": "user_limit_reached"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "error_type": "rate_limited"})
	case errors.Is(err, service.ErrInvalidOrExpiredCode), errors.Is(err, service.ErrTooManyAttempts):
		log.Printf("[AuthHandler] code verification failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired code", "error_type": "invalid_or_expired_code"})
	case errors.Is(err, service.ErrEmailDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not deliver the email, try again later", "error_type": "email_delivery_failed"})
	case errors.Is(err, apperrors.ErrDependency):
		log.Printf("[AuthHandler] dependency failure: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable", "error_type": "dependency_failure"})
	default:
		log.Printf("[AuthHandler] unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_error"})
	}
}
