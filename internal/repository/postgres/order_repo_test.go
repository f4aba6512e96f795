package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

func seedOrder(t *testing.T, repo *OrderRepo, userID uint, rzpID string) *entity.Order {
	t.Helper()
	order := &entity.Order{
		UserID:          userID,
		Date:            time.Now(),
		Currency:        "INR",
		Status:          entity.StatusPaymentLeft,
		TotalClothes:    3,
		MoneyAmount:     4500,
		RazorpayOrderID: rzpID,
		Receipt:         "receipt_" + rzpID,
		Items: []entity.OrderItem{
			{LaundryItemID: 1, Title: "Shirt", Quantity: 3, UnitPrice: decimal.NewFromInt(15)},
		},
	}
	require.NoError(t, repo.Create(order))
	return order
}

func TestOrderRepo_CreateAndGet(t *testing.T) {
	repo := NewOrderRepo(newTestDB(t))
	order := seedOrder(t, repo, 1, "order_A")

	got, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(15).Equal(got.Items[0].UnitPrice))

	byRzp, err := repo.GetByRazorpayOrderID("order_A")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byRzp.ID)

	_, err = repo.GetByID(999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderRepo_CancelIfPending(t *testing.T) {
	repo := NewOrderRepo(newTestDB(t))
	order := seedOrder(t, repo, 1, "order_A")

	_, err := repo.CancelIfPending(order.ID, 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "other users cannot see the order")

	cancelled, err := repo.CancelIfPending(order.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, cancelled.Status)

	_, err = repo.CancelIfPending(order.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestOrderRepo_MarkPaid_KeepsCancelledOrder(t *testing.T) {
	repo := NewOrderRepo(newTestDB(t))
	order := seedOrder(t, repo, 1, "order_A")
	_, err := repo.CancelIfPending(order.ID, 1)
	require.NoError(t, err)

	_, err = repo.MarkPaid(order.ID, "pay_late")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, got.Status)
	assert.False(t, got.MoneyPaid)
	assert.Empty(t, got.RazorpayPaymentID)

	_, err = repo.MarkPaid(999, "pay_x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderRepo_StatusTransitions(t *testing.T) {
	repo := NewOrderRepo(newTestDB(t))
	a := seedOrder(t, repo, 1, "order_A")
	seedOrder(t, repo, 2, "order_B")

	paid, err := repo.MarkPaid(a.ID, "pay_1")
	require.NoError(t, err)
	assert.True(t, paid.MoneyPaid)
	assert.Equal(t, "pay_1", paid.RazorpayPaymentID)
	assert.Equal(t, entity.StatusOrderPlaced, paid.Status)

	_, err = repo.CancelIfPending(a.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "paid orders cannot be cancelled")

	updated, err := repo.UpdateStatus(a.ID, entity.StatusPrepared)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPrepared, updated.Status)

	prepared, err := repo.ListByStatus(entity.StatusPrepared)
	require.NoError(t, err)
	assert.Len(t, prepared, 1)

	pending, err := repo.ListByStatus(entity.StatusPaymentLeft)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := repo.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := repo.ListByUser(2)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = repo.UpdateStatus(999, entity.StatusPending)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
