package dto

import (
	"time"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/handler/helper"
)

type OrderItemRequest struct {
	ItemID   uint `json:"itemId" binding:"required"`
	Quantity int  `json:"quantity" binding:"required"`
}

type CreateOrderRequest struct {
	Items    []OrderItemRequest `json:"items" binding:"required"`
	Currency string             `json:"currency"`
	Date     *time.Time         `json:"date"`
}

type VerifySignatureRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// OrderResponse adds a display amount to the stored subunit total.
type OrderResponse struct {
	entity.Order
	Amount string `json:"amount"`
}

func NewOrderResponse(order *entity.Order) OrderResponse {
	return OrderResponse{Order: *order, Amount: helper.FormatMinorUnits(order.MoneyAmount)}
}

func NewOrderResponses(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = NewOrderResponse(&orders[i])
	}
	return out
}

// CheckoutResponse carries what the client needs to open the payment widget.
type CheckoutResponse struct {
	Order           OrderResponse `json:"order"`
	RazorpayOrderID string        `json:"razorpayOrderId"`
	RazorpayKeyID   string        `json:"razorpayKeyId"`
}
