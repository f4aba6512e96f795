package repository

import "github.com/ulaundry/laundry-api/internal/domain/entity"

// OrderRepository manages orders and their line items.
type OrderRepository interface {
	Create(order *entity.Order) error
	GetByID(id uint) (*entity.Order, error)
	GetByRazorpayOrderID(razorpayOrderID string) (*entity.Order, error)
	ListByUser(userID uint) ([]entity.Order, error)
	ListAll() ([]entity.Order, error)
	ListByStatus(status entity.OrderStatus) ([]entity.Order, error)
	// CancelIfPending cancels the order only if it belongs to userID and is still awaiting payment.
	CancelIfPending(orderID, userID uint) (*entity.Order, error)
	UpdateStatus(orderID uint, status entity.OrderStatus) (*entity.Order, error)
	MarkPaid(orderID uint, paymentID string) (*entity.Order, error)
}
