// Package apitest runs the full HTTP stack over in-memory SQLite and miniredis.
package apitest

import (
	"context"
	"fmt"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ulaundry/laundry-api/internal/app"
	"github.com/ulaundry/laundry-api/internal/config"
	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/service"
)

// DefaultPassword satisfies the registration password rules.
const DefaultPassword = "Secret#123"

const gatewaySecret = "rzp_test_secret"

// Env is one isolated running API.
type Env struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *miniredis.Miniredis
	Email    *CapturingEmail
	Gateway  *FakeGateway
	Registry *prometheus.Registry
	App      *app.App
	Server   *httptest.Server
}

// Option adjusts the configuration before the app is built.
type Option func(*config.Config)

// WithAccessTTL shortens access tokens, e.g. to exercise refresh flows.
func WithAccessTTL(d time.Duration) Option {
	return func(c *config.Config) { c.JWT.AccessExpiry = d }
}

func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Mode: gin.TestMode},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret",
			RefreshSecret: "test-refresh-secret",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 24 * time.Hour,
		},
		Auth: config.AuthConfig{
			OTPTTL:         2 * time.Minute,
			OTPMaxAttempts: 5,
			OTPBcryptCost:  bcrypt.MinCost,
			CookieMaxAge:   24 * time.Hour,
			ResetTokenTTL:  15 * time.Minute,
			FrontendURL:    "http://localhost:5173",
		},
		Payment: config.PaymentConfig{KeyID: "rzp_test_key", KeySecret: gatewaySecret},
		CORS:    config.CORSConfig{Origins: []string{"http://localhost:5173"}},
	}
}

// New starts a server; everything is torn down with the test.
func New(t *testing.T, opts ...Option) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := TestConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	db := OpenDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &Env{
		Config:   cfg,
		DB:       db,
		Redis:    mr,
		Email:    &CapturingEmail{},
		Gateway:  &FakeGateway{Secret: gatewaySecret},
		Registry: prometheus.NewRegistry(),
	}

	a, err := app.New(cfg, app.Infra{
		DB:       db,
		Redis:    client,
		Email:    env.Email,
		Gateway:  env.Gateway,
		Registry: env.Registry,
	})
	require.NoError(t, err)
	env.App = a
	env.Server = httptest.NewServer(a.Engine)
	t.Cleanup(env.Server.Close)
	t.Cleanup(a.Hub.Close)
	return env
}

// OpenDB returns an isolated in-memory SQLite database with the application schema.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.OneTimeCode{},
		&entity.LaundryItem{},
		&entity.Order{},
		&entity.OrderItem{},
	))
	return db
}

// URL joins path onto the test server address.
func (e *Env) URL(path string) string {
	return e.Server.URL + path
}

var seq int64

// SeedUser inserts a verified account with DefaultPassword.
func (e *Env) SeedUser(t *testing.T, email string, role entity.Role) *entity.User {
	t.Helper()
	n := atomic.AddInt64(&seq, 1)
	user := &entity.User{
		Username:   fmt.Sprintf("user%d", n),
		Email:      email,
		Password:   DefaultPassword,
		Name:       "Test Student",
		FatherName: "Test Parent",
		StudentID:  1000 + n,
		HostelName: "GARGI",
		RoomNumber: "101",
		DegreeName: entity.DefaultDegree,
		Role:       role,
		IsVerified: true,
	}
	require.NoError(t, e.DB.Create(user).Error)
	return user
}

// SeedItem inserts an active catalog item.
func (e *Env) SeedItem(t *testing.T, title, price string, maxQty int) *entity.LaundryItem {
	t.Helper()
	item := &entity.LaundryItem{
		Title:               title,
		PricePerUnit:        decimal.RequireFromString(price),
		MaxQuantityPerOrder: maxQty,
		Category:            entity.CategoryClothes,
		IsActive:            true,
	}
	require.NoError(t, e.DB.Create(item).Error)
	return item
}

var codePattern = regexp.MustCompile(`>(\d{6})</span>`)

// LastCode extracts the most recent verification code mailed to email.
func (e *Env) LastCode(t *testing.T, email string) string {
	t.Helper()
	msg, ok := e.Email.Last(email)
	require.True(t, ok, "no email sent to %s", email)
	m := codePattern.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2, "no code in email %q", msg.Subject)
	return m[1]
}

// SignPayment produces the signature the checkout widget would return.
func (e *Env) SignPayment(orderID, paymentID string) string {
	return service.SignPayment(gatewaySecret, orderID, paymentID)
}

// Message is one captured email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// CapturingEmail records messages instead of sending them.
type CapturingEmail struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (c *CapturingEmail) Send(ctx context.Context, to, subject, html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.sent = append(c.sent, Message{To: to, Subject: subject, HTML: html})
	return nil
}

// Last returns the newest message to the recipient.
func (c *CapturingEmail) Last(to string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].To == to {
			return c.sent[i], true
		}
	}
	return Message{}, false
}

func (c *CapturingEmail) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// FakeGateway issues sequential order ids and checks real HMAC signatures.
type FakeGateway struct {
	Secret string
	Err    error
	n      int64
}

func (g *FakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*service.GatewayOrder, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	id := atomic.AddInt64(&g.n, 1)
	return &service.GatewayOrder{
		ID:       fmt.Sprintf("order_test%d", id),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *FakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return service.SignPayment(g.Secret, orderID, paymentID) == signature
}
