package postgres

import (
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
)

// UserRepo implements repository.UserRepository on top of PostgreSQL.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(user *entity.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	var user entity.User
	err := r.db.Where("lower(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) Count() (int64, error) {
	var total int64
	err := r.db.Model(&entity.User{}).Count(&total).Error
	return total, err
}

// RecordFailedLogin performs the increment and the conditional lock in one
// statement so that concurrent failed logins cannot lose an increment or
// produce an account that crossed the threshold without a lock timestamp.
func (r *UserRepo) RecordFailedLogin(userID uint, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	var (
		attempts int
		locked   sql.NullTime
	)
	row := r.db.Raw(`
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END,
		    updated_at = ?
		WHERE id = ?
		RETURNING failed_login_attempts, locked_until`,
		maxAttempts, lockUntil, time.Now(), userID,
	).Row()
	if err := row.Scan(&attempts, &locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, apperrors.ErrNotFound
		}
		return 0, nil, err
	}
	if !locked.Valid {
		return attempts, nil, nil
	}
	lockedAt := locked.Time
	return attempts, &lockedAt, nil
}

func (r *UserRepo) ResetLockout(userID uint) error {
	return r.db.Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"updated_at":            time.Now(),
		}).Error
}

func (r *UserRepo) MarkEmailVerified(userID uint) error {
	return r.db.Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"email_verified": true,
			"updated_at":     time.Now(),
		}).Error
}

// UpdatePassword hashes here and writes with raw SQL to bypass the BeforeSave
// hook, which would otherwise see a bcrypt hash and leave it alone anyway but
// has no business running on a credential replacement.
func (r *UserRepo) UpdatePassword(userID uint, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[UserRepo.UpdatePassword] failed to hash password for user ID=%d: %v", userID, err)
		return err
	}

	result := r.db.Exec(
		"UPDATE users SET password = ?, updated_at = ? WHERE id = ?",
		string(hashedPassword), time.Now(), userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
