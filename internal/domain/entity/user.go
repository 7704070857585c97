package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User roles. Teacher and admin are functionally equivalent ("privileged");
// "admin" is kept for accounts created before the role was collapsed into teacher.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User represents an account in the system. Email is the unique, case-insensitive
// identity; FailedLoginAttempts and LockedUntil are owned by the lockout logic and
// must not be written by anything else.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Email    string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Name     string `gorm:"size:100;not null" json:"name"`
	Password string `gorm:"size:100;not null" json:"-"`
	Role     string `gorm:"size:20;not null;default:'student'" json:"role"`

	EmailVerified       bool       `gorm:"not null;default:false" json:"email_verified"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time `gorm:"type:timestamp" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for GORM.
func (User) TableName() string {
	return "users"
}

// BeforeSave hashes the password unless it is already a bcrypt hash.
// Prevents double hashing when a loaded record is saved back.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] failed to hash password for email=%s: %v", u.Email, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword reports whether the given password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// IsLocked reports whether the account is locked out at the given instant.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// IsPrivileged reports whether the account may use teacher/admin endpoints.
func (u *User) IsPrivileged() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}
