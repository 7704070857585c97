package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/eduquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/eduquiz-api/internal/pkg/errors"
)

// OTPChallengeRepo implements repository.OTPChallengeRepository on top of PostgreSQL.
type OTPChallengeRepo struct {
	db *gorm.DB
}

func NewOTPChallengeRepo(db *gorm.DB) *OTPChallengeRepo {
	return &OTPChallengeRepo{db: db}
}

func (r *OTPChallengeRepo) Create(challenge *entity.OTPChallenge) error {
	return r.db.Create(challenge).Error
}

func (r *OTPChallengeRepo) FindActive(email, purpose string, now time.Time) (*entity.OTPChallenge, error) {
	var challenge entity.OTPChallenge
	err := r.db.
		Where("email = ? AND purpose = ? AND is_verified = false AND expires_at > ?", email, purpose, now).
		Order("created_at DESC").
		First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active challenge: %w", err)
	}
	return &challenge, nil
}

func (r *OTPChallengeRepo) CountRecent(email, purpose string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&entity.OTPChallenge{}).
		Where("email = ? AND purpose = ? AND created_at >= ?", email, purpose, since).
		Count(&count).Error
	return count, err
}

// ResetForReissue is conditional on the row still being unverified, which
// closes the race between a reissue and a concurrent successful verification.
func (r *OTPChallengeRepo) ResetForReissue(id uint, code string, expiresAt time.Time) error {
	result := r.db.Model(&entity.OTPChallenge{}).
		Where("id = ? AND is_verified = false", id).
		Updates(map[string]interface{}{
			"code":       code,
			"expires_at": expiresAt,
			"attempts":   0,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *OTPChallengeRepo) IncrementAttempts(id uint) (int, error) {
	var attempts int
	row := r.db.Raw(`
		UPDATE otp_challenges
		SET attempts = attempts + 1, updated_at = ?
		WHERE id = ?
		RETURNING attempts`,
		time.Now(), id,
	).Row()
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, err
	}
	return attempts, nil
}

func (r *OTPChallengeRepo) MarkVerified(id uint) error {
	result := r.db.Model(&entity.OTPChallenge{}).
		Where("id = ? AND is_verified = false", id).
		Updates(map[string]interface{}{
			"is_verified": true,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *OTPChallengeRepo) DeleteOthers(email, purpose string, keepID uint) error {
	return r.db.
		Where("email = ? AND purpose = ? AND id <> ?", email, purpose, keepID).
		Delete(&entity.OTPChallenge{}).Error
}
