package repository

import (
	"time"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
)

// UserRepository is the credential store.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	// FindConflict returns an existing user sharing the username, email or student id.
	FindConflict(username, email string, studentID int64) (*entity.User, error)
	GetByResetTokenHash(hash string, now time.Time) (*entity.User, error)
	UpdateProfile(userID uint, updates map[string]interface{}) error
	UpdatePassword(userID uint, newPassword string) error
	// SetRefreshToken overwrites the stored refresh token; nil revokes it.
	SetRefreshToken(userID uint, token *string) error
	SetResetToken(userID uint, hash *string, expiry *time.Time) error
	List(limit, offset int) ([]entity.User, int64, error)
	// Delete removes the user together with its orders and one-time codes.
	Delete(userID uint) error
}
