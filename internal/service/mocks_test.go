package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// MockUserRepository implements repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) FindConflict(username, email string, studentID int64) (*entity.User, error) {
	args := m.Called(username, email, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByResetTokenHash(hash string, now time.Time) (*entity.User, error) {
	args := m.Called(hash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(userID uint, updates map[string]interface{}) error {
	args := m.Called(userID, updates)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(userID uint, newPassword string) error {
	args := m.Called(userID, newPassword)
	return args.Error(0)
}

func (m *MockUserRepository) SetRefreshToken(userID uint, token *string) error {
	args := m.Called(userID, token)
	return args.Error(0)
}

func (m *MockUserRepository) SetResetToken(userID uint, hash *string, expiry *time.Time) error {
	args := m.Called(userID, hash, expiry)
	return args.Error(0)
}

func (m *MockUserRepository) List(limit, offset int) ([]entity.User, int64, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) Delete(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

// MockLaundryItemRepository implements repository.LaundryItemRepository.
type MockLaundryItemRepository struct {
	mock.Mock
}

func (m *MockLaundryItemRepository) Create(item *entity.LaundryItem) error {
	args := m.Called(item)
	return args.Error(0)
}

func (m *MockLaundryItemRepository) GetByID(id uint) (*entity.LaundryItem, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LaundryItem), args.Error(1)
}

func (m *MockLaundryItemRepository) GetByIDs(ids []uint) ([]entity.LaundryItem, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.LaundryItem), args.Error(1)
}

func (m *MockLaundryItemRepository) ListActive() ([]entity.LaundryItem, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.LaundryItem), args.Error(1)
}

func (m *MockLaundryItemRepository) ListAll() ([]entity.LaundryItem, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.LaundryItem), args.Error(1)
}

func (m *MockLaundryItemRepository) Update(id uint, updates map[string]interface{}) error {
	args := m.Called(id, updates)
	return args.Error(0)
}

func (m *MockLaundryItemRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

// MockOrderRepository implements repository.OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) order(args mock.Arguments) (*entity.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Order), args.Error(1)
}

func (m *MockOrderRepository) orders(args mock.Arguments) ([]entity.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(order *entity.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(id uint) (*entity.Order, error) {
	return m.order(m.Called(id))
}

func (m *MockOrderRepository) GetByRazorpayOrderID(razorpayOrderID string) (*entity.Order, error) {
	return m.order(m.Called(razorpayOrderID))
}

func (m *MockOrderRepository) ListByUser(userID uint) ([]entity.Order, error) {
	return m.orders(m.Called(userID))
}

func (m *MockOrderRepository) ListAll() ([]entity.Order, error) {
	return m.orders(m.Called())
}

func (m *MockOrderRepository) ListByStatus(status entity.OrderStatus) ([]entity.Order, error) {
	return m.orders(m.Called(status))
}

func (m *MockOrderRepository) CancelIfPending(orderID, userID uint) (*entity.Order, error) {
	return m.order(m.Called(orderID, userID))
}

func (m *MockOrderRepository) UpdateStatus(orderID uint, status entity.OrderStatus) (*entity.Order, error) {
	return m.order(m.Called(orderID, status))
}

func (m *MockOrderRepository) MarkPaid(orderID uint, paymentID string) (*entity.Order, error) {
	return m.order(m.Called(orderID, paymentID))
}

// memCodeRepo is an in-memory repository.OneTimeCodeRepository.
type memCodeRepo struct {
	mu     sync.Mutex
	nextID uint
	codes  []*entity.OneTimeCode
}

func (r *memCodeRepo) Replace(code *entity.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.Email == code.Email && c.Purpose == code.Purpose {
			c.Used = true
		}
	}
	r.nextID++
	code.ID = r.nextID
	stored := *code
	r.codes = append(r.codes, &stored)
	return nil
}

func (r *memCodeRepo) GetLatestActive(email string, purpose entity.OTPPurpose, now time.Time) (*entity.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.codes) - 1; i >= 0; i-- {
		c := r.codes[i]
		if c.Email == email && c.Purpose == purpose && !c.Used && !c.IsExpired(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memCodeRepo) find(id uint) *entity.OneTimeCode {
	for _, c := range r.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *memCodeRepo) IncrementAttempts(id uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(id)
	if c == nil {
		return 0, apperrors.ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (r *memCodeRepo) MarkUsed(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(id)
	if c == nil {
		return apperrors.ErrNotFound
	}
	c.Used = true
	return nil
}

func (r *memCodeRepo) DeleteExpired(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.codes[:0]
	var n int64
	for _, c := range r.codes {
		if c.IsExpired(now) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.codes = kept
	return n, nil
}

type sentEmail struct {
	To, Subject, HTML string
}

// recordingEmail captures outgoing mail; Err makes every send fail.
type recordingEmail struct {
	mu   sync.Mutex
	Err  error
	Sent []sentEmail
}

func (e *recordingEmail) Send(ctx context.Context, to, subject, html string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.Sent = append(e.Sent, sentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

func (e *recordingEmail) last() sentEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Sent) == 0 {
		return sentEmail{}
	}
	return e.Sent[len(e.Sent)-1]
}

// MockBlobStore implements BlobStore.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, prefix string, file Upload) (string, string, error) {
	args := m.Called(ctx, prefix, file)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
