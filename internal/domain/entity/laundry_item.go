package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemCategory groups catalog items.
type ItemCategory string

const (
	CategoryClothes     ItemCategory = "clothes"
	CategoryBedding     ItemCategory = "bedding"
	CategoryAccessories ItemCategory = "accessories"
	CategoryOthers      ItemCategory = "others"
)

// DefaultMaxQuantityPerOrder applies when an item is created without an explicit cap.
const DefaultMaxQuantityPerOrder = 10

// ValidCategory reports whether c is a known category.
func ValidCategory(c ItemCategory) bool {
	switch c {
	case CategoryClothes, CategoryBedding, CategoryAccessories, CategoryOthers:
		return true
	}
	return false
}

// LaundryItem is a catalog entry a student can put in an order.
type LaundryItem struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Title               string          `gorm:"size:100;not null;uniqueIndex" json:"title"`
	ImageURL            string          `gorm:"size:512;not null;default:''" json:"imageUrl"`
	ImageKey            string          `gorm:"size:255;not null;default:''" json:"-"`
	PricePerUnit        decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"pricePerUnit"`
	MaxQuantityPerOrder int             `gorm:"not null;default:10" json:"maxQuantityPerOrder"`
	Category            ItemCategory    `gorm:"size:20;not null;default:'clothes'" json:"category"`
	Description         string          `gorm:"size:500;not null;default:''" json:"description"`
	IsActive            bool            `gorm:"not null;default:true" json:"isActive"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func (LaundryItem) TableName() string {
	return "laundry_items"
}
