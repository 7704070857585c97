package service

import "time"

// SecuritySettings is the per-call configuration object for the auth and
// verification flows. The transport layer builds it from whatever mutable
// configuration source it has; services never read configuration globals.
type SecuritySettings struct {
	// MaxLoginAttempts is the consecutive-failure count that locks an account.
	MaxLoginAttempts int
	// LockoutDuration is how long a triggered lock lasts.
	LockoutDuration time.Duration
	// PasswordPolicy is one of PolicyEasy, PolicyMedium, PolicyStrong.
	PasswordPolicy string
	// AllowRegistration gates self-registration entirely.
	AllowRegistration bool
	// MaxUsers caps the account population; 0 means unlimited.
	MaxUsers int64
}

// DefaultSecuritySettings returns the documented defaults: 5 attempts,
// 15 minute lockout, medium password policy, open registration, no user cap.
func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{
		MaxLoginAttempts:  5,
		LockoutDuration:   15 * time.Minute,
		PasswordPolicy:    PolicyMedium,
		AllowRegistration: true,
		MaxUsers:          0,
	}
}

// withDefaults fills zero values so a partially built settings object cannot
// disable the lockout machinery by accident.
func (s SecuritySettings) withDefaults() SecuritySettings {
	def := DefaultSecuritySettings()
	if s.MaxLoginAttempts <= 0 {
		s.MaxLoginAttempts = def.MaxLoginAttempts
	}
	if s.LockoutDuration <= 0 {
		s.LockoutDuration = def.LockoutDuration
	}
	if s.PasswordPolicy == "" {
		s.PasswordPolicy = def.PasswordPolicy
	}
	return s
}
