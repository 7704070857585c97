package service

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
)

// Password policies selectable per call. Default is PolicyMedium.
const (
	PolicyEasy   = "easy"
	PolicyMedium = "medium"
	PolicyStrong = "strong"
)

// passwordSymbols is the punctuation set a "strong" password must draw from.
const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// ValidatePassword checks password against the named policy and returns a
// wrapped apperrors.ErrValidation when it does not qualify. An unknown policy
// name is itself a validation error rather than a silent fallback.
func ValidatePassword(password, policy string) error {
	switch policy {
	case "":
		policy = PolicyMedium
	case PolicyEasy, PolicyMedium, PolicyStrong:
	default:
		return fmt.Errorf("%w: unknown password policy %q", apperrors.ErrValidation, policy)
	}

	switch policy {
	case PolicyEasy:
		if len(password) < 6 {
			return fmt.Errorf("%w: password must be at least 6 characters", apperrors.ErrValidation)
		}
	case PolicyMedium:
		if len(password) < 8 {
			return fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
		}
	case PolicyStrong:
		if len(password) < 8 {
			return fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
		}
		if !containsDigit(password) {
			return fmt.Errorf("%w: password must contain a digit", apperrors.ErrValidation)
		}
		if !strings.ContainsAny(password, passwordSymbols) {
			return fmt.Errorf("%w: password must contain a symbol", apperrors.ErrValidation)
		}
	}
	return nil
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
