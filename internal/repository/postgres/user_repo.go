package postgres

import (
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// UserRepo implements repository.UserRepository.
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a user repository.
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a user; unique violations become ErrConflict.
func (r *UserRepo) Create(user *entity.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user with this username, email or student id already exists", apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

// GetByID returns a user by primary key.
func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByEmail returns a user by email.
func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	var user entity.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByUsername returns a user by username.
func (r *UserRepo) GetByUsername(username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepo) FindConflict(username, email string, studentID int64) (*entity.User, error) {
	var user entity.User
	err := r.db.
		Where("username = ? OR email = ? OR student_id = ?", username, email, studentID).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByResetTokenHash returns the user owning an unexpired password-reset token.
func (r *UserRepo) GetByResetTokenHash(hash string, now time.Time) (*entity.User, error) {
	var user entity.User
	err := r.db.
		Where("forgot_password_token = ? AND forgot_password_expiry > ?", hash, now).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdateProfile updates the given columns. Passwords go through UpdatePassword.
func (r *UserRepo) UpdateProfile(userID uint, updates map[string]interface{}) error {
	delete(updates, "password")
	updates["updated_at"] = time.Now()

	result := r.db.Model(&entity.User{}).Where("id = ?", userID).UpdateColumns(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("%w: username already taken", apperrors.ErrConflict)
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdatePassword hashes and stores a new password, bypassing the BeforeSave hook.
func (r *UserRepo) UpdatePassword(userID uint, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[UserRepo.UpdatePassword] failed to hash password for user ID=%d: %v", userID, err)
		return err
	}

	result := r.db.Exec(
		"UPDATE users SET password = ?, updated_at = ? WHERE id = ?",
		string(hashedPassword),
		time.Now(),
		userID,
	)
	if result.Error != nil {
		log.Printf("[UserRepo.UpdatePassword] update failed for user ID=%d: %v", userID, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	log.Printf("[UserRepo.UpdatePassword] password updated for user ID=%d", userID)
	return nil
}

// SetRefreshToken overwrites the stored refresh token. A nil token revokes it.
func (r *UserRepo) SetRefreshToken(userID uint, token *string) error {
	var value interface{} = gorm.Expr("NULL")
	if token != nil {
		value = *token
	}
	result := r.db.Model(&entity.User{}).Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{"refresh_token": value, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetResetToken(userID uint, hash *string, expiry *time.Time) error {
	updates := map[string]interface{}{
		"forgot_password_token":  gorm.Expr("NULL"),
		"forgot_password_expiry": gorm.Expr("NULL"),
		"updated_at":             time.Now(),
	}
	if hash != nil && expiry != nil {
		updates["forgot_password_token"] = *hash
		updates["forgot_password_expiry"] = *expiry
	}
	result := r.db.Model(&entity.User{}).Where("id = ?", userID).UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// List returns a page of users and the total count.
func (r *UserRepo) List(limit, offset int) ([]entity.User, int64, error) {
	var users []entity.User
	var total int64

	if err := r.db.Model(&entity.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error
	return users, total, err
}

// Delete removes the user, its orders and its one-time codes in one transaction.
func (r *UserRepo) Delete(userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var user entity.User
		if err := tx.First(&user, userID).Error; err != nil {
			return notFound(err)
		}
		orderIDs := tx.Model(&entity.Order{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("order_id IN (?)", orderIDs).Delete(&entity.OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&entity.Order{}).Error; err != nil {
			return fmt.Errorf("failed to delete orders: %w", err)
		}
		if err := tx.Where("email = ?", user.Email).Delete(&entity.OneTimeCode{}).Error; err != nil {
			return fmt.Errorf("failed to delete one-time codes: %w", err)
		}
		return tx.Delete(&entity.User{}, userID).Error
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}
