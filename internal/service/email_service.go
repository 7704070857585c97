package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailSender delivers transactional mail. Code delivery to the primary
// recipient is sent synchronously so the caller learns about failures;
// welcome and password-changed confirmations are best-effort.
type EmailSender interface {
	SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error
	SendPasswordResetCode(ctx context.Context, toEmail, code, idempotencyKey string) error
	SendPasswordChangedConfirmation(ctx context.Context, toEmail, name string) error
	SendWelcome(ctx context.Context, toEmail, name string) error
}

// NoopEmailSender is used in development when no provider is configured.
type NoopEmailSender struct{}

func (s *NoopEmailSender) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	log.Printf("[EmailSender] noop send verification code to=%s", toEmail)
	return nil
}

func (s *NoopEmailSender) SendPasswordResetCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	log.Printf("[EmailSender] noop send password reset code to=%s", toEmail)
	return nil
}

func (s *NoopEmailSender) SendPasswordChangedConfirmation(ctx context.Context, toEmail, name string) error {
	log.Printf("[EmailSender] noop send password changed confirmation to=%s", toEmail)
	return nil
}

func (s *NoopEmailSender) SendWelcome(ctx context.Context, toEmail, name string) error {
	log.Printf("[EmailSender] noop send welcome to=%s", toEmail)
	return nil
}

// ResendEmailSender sends mail via the Resend REST API.
type ResendEmailSender struct {
	from   string
	client *resend.Client
}

func NewResendEmailSender(apiKey, from string) (*ResendEmailSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailSender{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailSender) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Verify your email",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code),
		Html:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 10 minutes.</p>", code),
	}, idempotencyKey)
}

func (s *ResendEmailSender) SendPasswordResetCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes. If you did not request this, ignore this email.", code),
		Html:    fmt.Sprintf("<p>Your password reset code is <strong>%s</strong>.</p><p>It expires in 10 minutes. If you did not request this, ignore this email.</p>", code),
	}, idempotencyKey)
}

func (s *ResendEmailSender) SendPasswordChangedConfirmation(ctx context.Context, toEmail, name string) error {
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Your password was changed",
		Text:    fmt.Sprintf("Hi %s, your password was just changed. If this was not you, reset your password immediately.", name),
		Html:    fmt.Sprintf("<p>Hi %s,</p><p>Your password was just changed. If this was not you, reset your password immediately.</p>", name),
	}, "")
}

func (s *ResendEmailSender) SendWelcome(ctx context.Context, toEmail, name string) error {
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Welcome!",
		Text:    fmt.Sprintf("Hi %s, your email is verified and your account is ready.", name),
		Html:    fmt.Sprintf("<p>Hi %s,</p><p>Your email is verified and your account is ready.</p>", name),
	}, "")
}

func (s *ResendEmailSender) send(ctx context.Context, params *resend.SendEmailRequest, idempotencyKey string) error {
	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
