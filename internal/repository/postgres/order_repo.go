package postgres

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// OrderRepo implements repository.OrderRepository.
type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create inserts the order together with its items.
func (r *OrderRepo) Create(order *entity.Order) error {
	return r.db.Create(order).Error
}

func (r *OrderRepo) GetByID(id uint) (*entity.Order, error) {
	var order entity.Order
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *OrderRepo) GetByRazorpayOrderID(razorpayOrderID string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.Preload("Items").Where("razorpay_order_id = ?", razorpayOrderID).First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *OrderRepo) ListByUser(userID uint) ([]entity.Order, error) {
	return r.list(r.db.Where("user_id = ?", userID))
}

func (r *OrderRepo) ListAll() ([]entity.Order, error) {
	return r.list(r.db)
}

func (r *OrderRepo) ListByStatus(status entity.OrderStatus) ([]entity.Order, error) {
	return r.list(r.db.Where("status = ?", status))
}

func (r *OrderRepo) list(q *gorm.DB) ([]entity.Order, error) {
	orders := []entity.Order{}
	err := q.Preload("Items").Order("created_at DESC").Order("id DESC").Find(&orders).Error
	return orders, err
}

// CancelIfPending is a conditional update: it only succeeds for the owner while payment is outstanding.
func (r *OrderRepo) CancelIfPending(orderID, userID uint) (*entity.Order, error) {
	result := r.db.Model(&entity.Order{}).
		Where("id = ? AND user_id = ? AND status = ?", orderID, userID, entity.StatusPaymentLeft).
		UpdateColumns(map[string]interface{}{"status": entity.StatusCancelled, "updated_at": time.Now()})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		existing, err := r.GetByID(orderID)
		if err != nil {
			return nil, err
		}
		if existing.UserID != userID {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: order in status %q cannot be cancelled", apperrors.ErrConflict, existing.Status)
	}
	return r.GetByID(orderID)
}

func (r *OrderRepo) UpdateStatus(orderID uint, status entity.OrderStatus) (*entity.Order, error) {
	result := r.db.Model(&entity.Order{}).
		Where("id = ?", orderID).
		UpdateColumns(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound
	}
	return r.GetByID(orderID)
}

// MarkPaid records a verified payment and moves the order into the moderator queue.
// A cancelled order stays cancelled and yields ErrConflict.
func (r *OrderRepo) MarkPaid(orderID uint, paymentID string) (*entity.Order, error) {
	result := r.db.Model(&entity.Order{}).
		Where("id = ? AND status <> ?", orderID, entity.StatusCancelled).
		UpdateColumns(map[string]interface{}{
			"money_paid":          true,
			"razorpay_payment_id": paymentID,
			"status":              entity.StatusOrderPlaced,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(orderID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: order was cancelled", apperrors.ErrConflict)
	}
	return r.GetByID(orderID)
}
