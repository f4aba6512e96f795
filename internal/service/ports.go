package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// Upload is a file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BlobStore keeps user-visible files (avatars, item images).
type BlobStore interface {
	Put(ctx context.Context, prefix string, file Upload) (key, url string, err error)
	Delete(ctx context.Context, key string) error
}

// uploadError keeps validation failures (bad type, too large) as client errors.
func uploadError(what string, err error) error {
	if errors.Is(err, apperrors.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s upload failed: %v", apperrors.ErrUpstream, what, err)
}

// Order event types published to the message broker.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the broker payload for order lifecycle changes.
type OrderEvent struct {
	Type       string             `json:"type"`
	OrderID    uint               `json:"orderId"`
	UserID     uint               `json:"userId"`
	Email      string             `json:"email"`
	Name       string             `json:"name"`
	Status     entity.OrderStatus `json:"status"`
	Amount     int64              `json:"amount"`
	Currency   string             `json:"currency"`
	Items      int                `json:"items"`
	OccurredAt time.Time          `json:"occurredAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// Notifier pushes real-time messages to a user's open sockets and to staff sockets.
type Notifier interface {
	NotifyUser(userID uint, eventType string, payload interface{})
	NotifyStaff(eventType string, payload interface{})
}

// GatewayOrder is the payment provider's view of an order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
}
