package entity

import "time"

// OTP purposes. A code issued for one purpose never satisfies another;
// every lookup filters by (email, purpose).
const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// OTPChallenge is a short-lived 6-digit code bound to (email, purpose).
// At most one challenge per pair is active at a time: reissuing while a
// challenge is still active overwrites its code and resets its counters
// in place rather than creating a second row.
type OTPChallenge struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Email   string `gorm:"size:100;not null;index:idx_otp_identity" json:"email"`
	Purpose string `gorm:"size:30;not null;index:idx_otp_identity" json:"purpose"`
	Code    string `gorm:"size:6;not null" json:"-"`

	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
	Attempts   int       `gorm:"not null;default:0" json:"attempts"`
	IsVerified bool      `gorm:"not null;default:false" json:"is_verified"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OTPChallenge) TableName() string {
	return "otp_challenges"
}

func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsActive reports whether the challenge can still participate in a
// verification cycle. Exhausted attempts are checked separately so that a
// spent challenge can still be reissued in place.
func (c *OTPChallenge) IsActive(now time.Time) bool {
	return !c.IsVerified && !c.IsExpired(now)
}
