package repository

import "github.com/ulaundry/laundry-api/internal/domain/entity"

// LaundryItemRepository manages the catalog.
type LaundryItemRepository interface {
	Create(item *entity.LaundryItem) error
	GetByID(id uint) (*entity.LaundryItem, error)
	GetByIDs(ids []uint) ([]entity.LaundryItem, error)
	ListActive() ([]entity.LaundryItem, error)
	ListAll() ([]entity.LaundryItem, error)
	Update(id uint, updates map[string]interface{}) error
	Delete(id uint) error
}
