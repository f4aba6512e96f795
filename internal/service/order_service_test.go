package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

type stubGateway struct {
	secret string
	err    error
	calls  []int64
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.calls = append(g.calls, amount)
	return &GatewayOrder{ID: "order_rzp1", Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return SignPayment(g.secret, orderID, paymentID) == signature
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type notification struct {
	userID    uint
	eventType string
}

type recordingNotifier struct {
	sent  []notification
	staff []map[string]interface{}
}

func (n *recordingNotifier) NotifyUser(userID uint, eventType string, payload interface{}) {
	n.sent = append(n.sent, notification{userID: userID, eventType: eventType})
}

func (n *recordingNotifier) NotifyStaff(eventType string, payload interface{}) {
	n.staff = append(n.staff, payload.(map[string]interface{}))
}

type orderFixture struct {
	svc      *OrderService
	orders   *MockOrderRepository
	items    *MockLaundryItemRepository
	users    *MockUserRepository
	gateway  *stubGateway
	notifier *recordingNotifier
	email    *recordingEmail
}

func newOrderFixture(t *testing.T, events EventPublisher) *orderFixture {
	t.Helper()
	f := &orderFixture{
		orders:   new(MockOrderRepository),
		items:    new(MockLaundryItemRepository),
		users:    new(MockUserRepository),
		gateway:  &stubGateway{secret: "rzp_secret"},
		notifier: &recordingNotifier{},
		email:    &recordingEmail{},
	}
	var err error
	f.svc, err = NewOrderService(f.orders, f.items, f.users, f.gateway, events, f.notifier, f.email)
	require.NoError(t, err)
	f.users.On("GetByID", uint(7)).Return(&entity.User{ID: 7, Email: "student@example.com", Name: "Student"}, nil).Maybe()
	return f
}

func catalogItems() []entity.LaundryItem {
	return []entity.LaundryItem{
		{ID: 1, Title: "Shirt", PricePerUnit: decimal.RequireFromString("12.50"), MaxQuantityPerOrder: 5, IsActive: true},
		{ID: 2, Title: "Bedsheet", PricePerUnit: decimal.RequireFromString("30"), MaxQuantityPerOrder: 2, IsActive: true},
		{ID: 3, Title: "Curtain", PricePerUnit: decimal.RequireFromString("40"), MaxQuantityPerOrder: 2, IsActive: false},
	}
}

func TestOrderService_PlaceOrder_PricesFromCatalog(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.items.On("GetByIDs", []uint{1, 2}).Return(catalogItems()[:2], nil)
	f.orders.On("Create", mock.AnythingOfType("*entity.Order")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.Order).ID = 11
	}).Return(nil)

	order, err := f.svc.PlaceOrder(context.Background(), 7, PlaceOrderInput{
		Items: []OrderLine{{ItemID: 1, Quantity: 2}, {ItemID: 2, Quantity: 1}, {ItemID: 1, Quantity: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(6750), order.MoneyAmount)
	assert.Equal(t, 4, order.TotalClothes)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, entity.StatusPaymentLeft, order.Status)
	assert.Equal(t, "order_rzp1", order.RazorpayOrderID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 3, order.Items[0].Quantity, "duplicate lines are merged")
	assert.Equal(t, []int64{6750}, f.gateway.calls)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, NotifyOrderStatus, f.notifier.sent[0].eventType)
	require.Len(t, f.notifier.staff, 1)
	assert.Equal(t, uint(11), f.notifier.staff[0]["orderId"])
	assert.Equal(t, uint(7), f.notifier.staff[0]["userId"])
	assert.Equal(t, "Order confirmation", f.email.last().Subject)
}

func TestOrderService_PlaceOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   PlaceOrderInput
		wantErr error
	}{
		{"empty cart", PlaceOrderInput{}, apperrors.ErrValidation},
		{"bad currency", PlaceOrderInput{Currency: "XYZ", Items: []OrderLine{{ItemID: 1, Quantity: 1}}}, apperrors.ErrValidation},
		{"zero quantity", PlaceOrderInput{Items: []OrderLine{{ItemID: 1, Quantity: 0}}}, apperrors.ErrValidation},
		{"over the cap", PlaceOrderInput{Items: []OrderLine{{ItemID: 2, Quantity: 3}}}, apperrors.ErrValidation},
		{"inactive item", PlaceOrderInput{Items: []OrderLine{{ItemID: 3, Quantity: 1}}}, ErrItemUnavailable},
		{"unknown item", PlaceOrderInput{Items: []OrderLine{{ItemID: 99, Quantity: 1}}}, ErrItemUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t, nil)
			f.items.On("GetByIDs", mock.Anything).Return(catalogItems(), nil).Maybe()

			_, err := f.svc.PlaceOrder(context.Background(), 7, tt.input)

			assert.ErrorIs(t, err, tt.wantErr)
			f.orders.AssertNotCalled(t, "Create", mock.Anything)
			assert.Empty(t, f.gateway.calls)
		})
	}
}

func TestOrderService_PlaceOrder_GatewayFailure(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.gateway.err = errors.New("connection refused")
	f.items.On("GetByIDs", []uint{1}).Return(catalogItems()[:1], nil)

	_, err := f.svc.PlaceOrder(context.Background(), 7, PlaceOrderInput{Items: []OrderLine{{ItemID: 1, Quantity: 1}}})

	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	f.orders.AssertNotCalled(t, "Create", mock.Anything)
}

func TestOrderService_VerifyPayment(t *testing.T) {
	events := &recordingPublisher{}
	f := newOrderFixture(t, events)
	pending := &entity.Order{ID: 11, UserID: 7, RazorpayOrderID: "order_rzp1", Status: entity.StatusPaymentLeft}
	paid := &entity.Order{ID: 11, UserID: 7, RazorpayOrderID: "order_rzp1", Status: entity.StatusOrderPlaced, MoneyPaid: true}
	f.orders.On("GetByRazorpayOrderID", "order_rzp1").Return(pending, nil).Once()
	f.orders.On("MarkPaid", uint(11), "pay_1").Return(paid, nil).Once()

	_, err := f.svc.VerifyPayment(context.Background(), "order_rzp1", "pay_1", "forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	f.orders.On("GetByRazorpayOrderID", "order_rzp1").Return(pending, nil).Once()
	got, err := f.svc.VerifyPayment(context.Background(), "order_rzp1", "pay_1", SignPayment("rzp_secret", "order_rzp1", "pay_1"))
	require.NoError(t, err)
	assert.True(t, got.MoneyPaid)

	require.Len(t, events.events, 1)
	assert.Equal(t, EventOrderStatusChanged, events.events[0].Type)
	assert.Equal(t, entity.StatusOrderPlaced, events.events[0].Status)
	assert.Empty(t, f.email.Sent, "with a broker the consumer sends the email")

	f.orders.On("GetByRazorpayOrderID", "order_rzp1").Return(paid, nil).Once()
	again, err := f.svc.VerifyPayment(context.Background(), "order_rzp1", "pay_1", SignPayment("rzp_secret", "order_rzp1", "pay_1"))
	require.NoError(t, err)
	assert.True(t, again.MoneyPaid)
	f.orders.AssertNumberOfCalls(t, "MarkPaid", 1)
}

func TestOrderService_Visibility(t *testing.T) {
	f := newOrderFixture(t, nil)
	order := &entity.Order{ID: 11, UserID: 7}
	f.orders.On("GetByID", uint(11)).Return(order, nil)
	f.orders.On("ListByUser", uint(7)).Return([]entity.Order{*order}, nil)

	_, err := f.svc.Get(context.Background(), 8, entity.RoleStudent, 11)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := f.svc.Get(context.Background(), 8, entity.RoleModerator, 11)
	require.NoError(t, err)
	assert.Equal(t, uint(11), got.ID)

	_, err = f.svc.ListForUser(context.Background(), 8, entity.RoleStudent, 7)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	list, err := f.svc.ListForUser(context.Background(), 7, entity.RoleStudent, 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.On("UpdateStatus", uint(11), entity.StatusPrepared).
		Return(&entity.Order{ID: 11, UserID: 7, Status: entity.StatusPrepared}, nil)

	_, err := f.svc.UpdateStatus(context.Background(), 11, entity.StatusPaymentLeft)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	order, err := f.svc.UpdateStatus(context.Background(), 11, entity.StatusPrepared)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPrepared, order.Status)
	assert.Equal(t, "Laundry order status updated", f.email.last().Subject)
	assert.Equal(t, "student@example.com", f.email.last().To)
}

func TestOrderService_Cancel(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.On("CancelIfPending", uint(11), uint(7)).Return(nil, apperrors.ErrConflict)

	_, err := f.svc.Cancel(context.Background(), 7, 11)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "can no longer be cancelled")
}
