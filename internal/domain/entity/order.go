package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusOrderPlaced OrderStatus = "Order Placed"
	StatusPending     OrderStatus = "Pending"
	StatusPrepared    OrderStatus = "Prepared"
	StatusPickedUp    OrderStatus = "Picked Up"
	StatusCancelled   OrderStatus = "Cancelled"
	StatusPaymentLeft OrderStatus = "Payment left"
)

// Currencies accepted by the payment gateway.
var Currencies = []string{"INR", "USD", "EUR"}

// ValidStatus reports whether s is any known order status.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case StatusOrderPlaced, StatusPending, StatusPrepared, StatusPickedUp, StatusCancelled, StatusPaymentLeft:
		return true
	}
	return false
}

// ModeratorSettable reports whether a moderator may move an order into s.
func ModeratorSettable(s OrderStatus) bool {
	switch s {
	case StatusOrderPlaced, StatusPending, StatusPrepared, StatusPickedUp:
		return true
	}
	return false
}

// ValidCurrency reports whether c is accepted by the gateway.
func ValidCurrency(c string) bool {
	return contains(Currencies, c)
}

// Order is a student's laundry order.
type Order struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UserID       uint        `gorm:"not null;index" json:"userId"`
	Items        []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalClothes int         `gorm:"not null;default:0" json:"totalClothes"`
	// MoneyAmount is in the currency's subunit (paise, cents).
	MoneyAmount       int64       `gorm:"not null;default:0" json:"moneyAmount"`
	Currency          string      `gorm:"size:3;not null;default:'INR'" json:"currency"`
	Date              time.Time   `gorm:"not null" json:"date"`
	Status            OrderStatus `gorm:"size:20;not null;default:'Payment left';index" json:"status"`
	MoneyPaid         bool        `gorm:"not null;default:false" json:"moneyPaid"`
	RazorpayOrderID   string      `gorm:"size:64;index" json:"razorpayOrderId"`
	RazorpayPaymentID string      `gorm:"size:64" json:"razorpayPaymentId"`
	Receipt           string      `gorm:"size:64" json:"receipt"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

// Cancellable reports whether the owner may still cancel the order.
func (o *Order) Cancellable() bool {
	return o.Status == StatusPaymentLeft
}

// OrderItem is one catalog line of an order, priced at order time.
type OrderItem struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	OrderID       uint            `gorm:"not null;index" json:"-"`
	LaundryItemID uint            `gorm:"not null" json:"laundryItem"`
	Title         string          `gorm:"size:100;not null" json:"title"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unitPrice"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
