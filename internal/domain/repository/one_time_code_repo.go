package repository

import (
	"time"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
)

// OneTimeCodeRepository persists hashed one-time codes.
type OneTimeCodeRepository interface {
	// Replace marks every unused code for (email, purpose) as used and inserts code, atomically.
	Replace(code *entity.OneTimeCode) error
	// GetLatestActive returns the newest unused, unexpired code for (email, purpose).
	GetLatestActive(email string, purpose entity.OTPPurpose, now time.Time) (*entity.OneTimeCode, error)
	IncrementAttempts(id uint) (int, error)
	MarkUsed(id uint) error
	DeleteExpired(now time.Time) (int64, error)
}
