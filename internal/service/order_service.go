package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/domain/repository"
	"github.com/ulaundry/laundry-api/internal/handler/helper"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// WebSocket event type for order status pushes.
const NotifyOrderStatus = "order_status"

// OrderLine is one requested catalog item.
type OrderLine struct {
	ItemID   uint
	Quantity int
}

type PlaceOrderInput struct {
	Items    []OrderLine
	Currency string
	Date     *time.Time
}

// OrderService runs checkout, payment confirmation and the moderator status queue.
type OrderService struct {
	orders   repository.OrderRepository
	items    repository.LaundryItemRepository
	users    repository.UserRepository
	gateway  PaymentGateway
	events   EventPublisher
	notifier Notifier
	email    EmailService
	now      func() time.Time
}

// NewOrderService wires checkout. events, notifier and email are optional side channels.
func NewOrderService(
	orders repository.OrderRepository,
	items repository.LaundryItemRepository,
	users repository.UserRepository,
	gateway PaymentGateway,
	events EventPublisher,
	notifier Notifier,
	email EmailService,
) (*OrderService, error) {
	if orders == nil {
		return nil, fmt.Errorf("OrderRepository is required for OrderService")
	}
	if items == nil {
		return nil, fmt.Errorf("LaundryItemRepository is required for OrderService")
	}
	if users == nil {
		return nil, fmt.Errorf("UserRepository is required for OrderService")
	}
	if gateway == nil {
		return nil, fmt.Errorf("PaymentGateway is required for OrderService")
	}
	return &OrderService{
		orders:   orders,
		items:    items,
		users:    users,
		gateway:  gateway,
		events:   events,
		notifier: notifier,
		email:    email,
		now:      time.Now,
	}, nil
}

// PlaceOrder prices the cart from the catalog, opens a gateway order and stores it awaiting payment.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, input PlaceOrderInput) (*entity.Order, error) {
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "INR"
	}
	if !entity.ValidCurrency(currency) {
		return nil, fmt.Errorf("%w: invalid currency", apperrors.ErrValidation)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", apperrors.ErrValidation)
	}

	quantities := make(map[uint]int, len(input.Items))
	ids := make([]uint, 0, len(input.Items))
	for _, line := range input.Items {
		if line.ItemID == 0 {
			return nil, fmt.Errorf("%w: item id is required", apperrors.ErrValidation)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", apperrors.ErrValidation)
		}
		if _, seen := quantities[line.ItemID]; !seen {
			ids = append(ids, line.ItemID)
		}
		quantities[line.ItemID] += line.Quantity
	}

	catalog, err := s.items.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]entity.LaundryItem, len(catalog))
	for _, item := range catalog {
		byID[item.ID] = item
	}

	order := &entity.Order{
		UserID:   userID,
		Currency: currency,
		Status:   entity.StatusPaymentLeft,
		Date:     s.now(),
	}
	if input.Date != nil {
		order.Date = *input.Date
	}
	total := decimal.Zero
	for _, id := range ids {
		item, ok := byID[id]
		if !ok || !item.IsActive {
			return nil, fmt.Errorf("%w: item %d", ErrItemUnavailable, id)
		}
		qty := quantities[id]
		if qty > item.MaxQuantityPerOrder {
			return nil, fmt.Errorf("%w: at most %d of %q per order", apperrors.ErrValidation, item.MaxQuantityPerOrder, item.Title)
		}
		order.Items = append(order.Items, entity.OrderItem{
			LaundryItemID: item.ID,
			Title:         item.Title,
			Quantity:      qty,
			UnitPrice:     item.PricePerUnit,
		})
		order.TotalClothes += qty
		total = total.Add(item.PricePerUnit.Mul(decimal.NewFromInt(int64(qty))))
	}
	order.MoneyAmount = helper.ToMinorUnits(total)
	if order.MoneyAmount <= 0 {
		return nil, fmt.Errorf("%w: order total must be positive", apperrors.ErrValidation)
	}

	order.Receipt = "receipt_" + uuid.NewString()
	gatewayOrder, err := s.gateway.CreateOrder(ctx, order.MoneyAmount, currency, order.Receipt)
	if err != nil {
		log.Printf("[OrderService] gateway order for user ID=%d failed: %v", userID, err)
		return nil, fmt.Errorf("%w: could not create payment order", apperrors.ErrUpstream)
	}
	order.RazorpayOrderID = gatewayOrder.ID

	if err := s.orders.Create(order); err != nil {
		return nil, err
	}
	log.Printf("[OrderService] order ID=%d placed by user ID=%d amount=%d %s", order.ID, userID, order.MoneyAmount, currency)

	s.announce(ctx, EventOrderPlaced, order, "Order confirmation")
	return order, nil
}

// VerifyPayment confirms a checkout signature and marks the order paid.
func (s *OrderService) VerifyPayment(ctx context.Context, razorpayOrderID, paymentID, signature string) (*entity.Order, error) {
	if razorpayOrderID == "" || paymentID == "" || signature == "" {
		return nil, fmt.Errorf("%w: all fields are mandatory for payment verification", apperrors.ErrValidation)
	}
	order, err := s.orders.GetByRazorpayOrderID(razorpayOrderID)
	if err != nil {
		return nil, err
	}
	if !s.gateway.VerifySignature(razorpayOrderID, paymentID, signature) {
		log.Printf("[OrderService] bad payment signature for order ID=%d", order.ID)
		return nil, ErrInvalidSignature
	}
	if order.MoneyPaid {
		return order, nil
	}
	paid, err := s.orders.MarkPaid(order.ID, paymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			log.Printf("[OrderService] payment %s captured for cancelled order ID=%d, needs a manual refund", paymentID, order.ID)
		}
		return nil, err
	}
	s.announce(ctx, EventOrderStatusChanged, paid, "Payment received")
	return paid, nil
}

// Get returns an order if the viewer owns it or can see every order.
func (s *OrderService) Get(ctx context.Context, viewerID uint, viewerRole entity.Role, orderID uint) (*entity.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != viewerID && !viewerRole.Can(entity.CapOrdersViewAll) {
		return nil, apperrors.ErrNotFound
	}
	return order, nil
}

func (s *OrderService) ListForUser(ctx context.Context, viewerID uint, viewerRole entity.Role, userID uint) ([]entity.Order, error) {
	if userID != viewerID && !viewerRole.Can(entity.CapOrdersViewAll) {
		return nil, apperrors.ErrForbidden
	}
	return s.orders.ListByUser(userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]entity.Order, error) {
	return s.orders.ListAll()
}

func (s *OrderService) ListByStatus(ctx context.Context, status entity.OrderStatus) ([]entity.Order, error) {
	if !entity.ValidStatus(status) {
		return nil, fmt.Errorf("%w: invalid status", apperrors.ErrValidation)
	}
	return s.orders.ListByStatus(status)
}

// Cancel is allowed only for the owner while payment is outstanding.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uint) (*entity.Order, error) {
	order, err := s.orders.CancelIfPending(orderID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: order can no longer be cancelled", apperrors.ErrConflict)
		}
		return nil, err
	}
	return order, nil
}

// UpdateStatus moves an order along the moderator workflow and tells the owner.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, status entity.OrderStatus) (*entity.Order, error) {
	if !entity.ModeratorSettable(status) {
		return nil, fmt.Errorf("%w: invalid status", apperrors.ErrValidation)
	}
	order, err := s.orders.UpdateStatus(orderID, status)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, EventOrderStatusChanged, order, "Laundry order status updated")
	return order, nil
}

// announce fans an order change out to the broker, the owner's sockets, staff
// sockets and email. Every channel is best effort.
func (s *OrderService) announce(ctx context.Context, eventType string, order *entity.Order, subject string) {
	if s.notifier != nil {
		s.notifier.NotifyUser(order.UserID, NotifyOrderStatus, map[string]interface{}{
			"orderId":   order.ID,
			"status":    order.Status,
			"moneyPaid": order.MoneyPaid,
		})
		s.notifier.NotifyStaff(NotifyOrderStatus, map[string]interface{}{
			"orderId":   order.ID,
			"userId":    order.UserID,
			"status":    order.Status,
			"moneyPaid": order.MoneyPaid,
		})
	}

	user, err := s.users.GetByID(order.UserID)
	if err != nil {
		log.Printf("[OrderService] owner of order ID=%d not loaded: %v", order.ID, err)
		return
	}

	if s.events != nil {
		event := OrderEvent{
			Type:       eventType,
			OrderID:    order.ID,
			UserID:     order.UserID,
			Email:      user.Email,
			Name:       user.Name,
			Status:     order.Status,
			Amount:     order.MoneyAmount,
			Currency:   order.Currency,
			Items:      order.TotalClothes,
			OccurredAt: s.now(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			log.Printf("[OrderService] publish %s for order ID=%d failed: %v", eventType, order.ID, err)
		}
		// The queue consumer sends the email when a broker is configured.
		return
	}

	if s.email != nil {
		html, err := OrderStatusEmail(OrderEmailData{
			OrderID:      order.ID,
			Name:         user.Name,
			Status:       string(order.Status),
			TotalClothes: order.TotalClothes,
			Amount:       helper.FormatMinorUnits(order.MoneyAmount),
			Currency:     order.Currency,
		})
		if err == nil {
			err = s.email.Send(ctx, user.Email, subject, html)
		}
		if err != nil {
			log.Printf("[OrderService] email for order ID=%d failed: %v", order.ID, err)
		}
	}
}
