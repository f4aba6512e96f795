package postgres

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// LaundryItemRepo implements repository.LaundryItemRepository.
type LaundryItemRepo struct {
	db *gorm.DB
}

func NewLaundryItemRepo(db *gorm.DB) *LaundryItemRepo {
	return &LaundryItemRepo{db: db}
}

func (r *LaundryItemRepo) Create(item *entity.LaundryItem) error {
	if err := r.db.Create(item).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: item %q already exists", apperrors.ErrConflict, item.Title)
		}
		return err
	}
	return nil
}

func (r *LaundryItemRepo) GetByID(id uint) (*entity.LaundryItem, error) {
	var item entity.LaundryItem
	if err := r.db.First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *LaundryItemRepo) GetByIDs(ids []uint) ([]entity.LaundryItem, error) {
	var items []entity.LaundryItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&items).Error
	return items, err
}

// ListActive returns items visible to students, grouped by category then title.
func (r *LaundryItemRepo) ListActive() ([]entity.LaundryItem, error) {
	var items []entity.LaundryItem
	err := r.db.Where("is_active = ?", true).Order("category ASC").Order("title ASC").Find(&items).Error
	return items, err
}

func (r *LaundryItemRepo) ListAll() ([]entity.LaundryItem, error) {
	var items []entity.LaundryItem
	err := r.db.Order("created_at DESC").Order("id DESC").Find(&items).Error
	return items, err
}

func (r *LaundryItemRepo) Update(id uint, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.Model(&entity.LaundryItem{}).Where("id = ?", id).UpdateColumns(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("%w: item title already exists", apperrors.ErrConflict)
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LaundryItemRepo) Delete(id uint) error {
	result := r.db.Delete(&entity.LaundryItem{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
