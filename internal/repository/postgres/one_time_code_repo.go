package postgres

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
)

type OneTimeCodeRepo struct {
	db *gorm.DB
}

func NewOneTimeCodeRepo(db *gorm.DB) *OneTimeCodeRepo {
	return &OneTimeCodeRepo{db: db}
}

// Replace invalidates all unused codes for the pair and inserts the new one in one transaction.
func (r *OneTimeCodeRepo) Replace(code *entity.OneTimeCode) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.OneTimeCode{}).
			Where("email = ? AND purpose = ? AND used = ?", code.Email, code.Purpose, false).
			UpdateColumn("used", true).Error
		if err != nil {
			return fmt.Errorf("failed to invalidate previous codes: %w", err)
		}
		if err := tx.Create(code).Error; err != nil {
			return fmt.Errorf("failed to insert one-time code: %w", err)
		}
		return nil
	})
}

func (r *OneTimeCodeRepo) GetLatestActive(email string, purpose entity.OTPPurpose, now time.Time) (*entity.OneTimeCode, error) {
	var code entity.OneTimeCode
	err := r.db.
		Where("email = ? AND purpose = ? AND used = ? AND expires_at > ?", email, purpose, false, now).
		Order("created_at DESC").
		Order("id DESC").
		First(&code).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &code, nil
}

// IncrementAttempts bumps the attempt counter and returns the new value.
func (r *OneTimeCodeRepo) IncrementAttempts(id uint) (int, error) {
	var attempts []int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.OneTimeCode{}).
			Where("id = ?", id).
			UpdateColumn("attempts", gorm.Expr("attempts + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&entity.OneTimeCode{}).Where("id = ?", id).Pluck("attempts", &attempts).Error
	})
	if err != nil {
		return 0, notFound(err)
	}
	if len(attempts) == 0 {
		return 0, notFound(gorm.ErrRecordNotFound)
	}
	return attempts[0], nil
}

func (r *OneTimeCodeRepo) MarkUsed(id uint) error {
	return r.db.Model(&entity.OneTimeCode{}).
		Where("id = ?", id).
		UpdateColumn("used", true).Error
}

// DeleteExpired garbage-collects expired rows.
func (r *OneTimeCodeRepo) DeleteExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at <= ?", now).Delete(&entity.OneTimeCode{})
	return result.RowsAffected, result.Error
}
