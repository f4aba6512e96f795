// Package app assembles repositories, services and the HTTP engine from
// already-connected infrastructure.
package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/ulaundry/laundry-api/internal/config"
	"github.com/ulaundry/laundry-api/internal/domain/repository"
	"github.com/ulaundry/laundry-api/internal/handler"
	"github.com/ulaundry/laundry-api/internal/middleware"
	pgRepo "github.com/ulaundry/laundry-api/internal/repository/postgres"
	redisRepo "github.com/ulaundry/laundry-api/internal/repository/redis"
	"github.com/ulaundry/laundry-api/internal/service"
	ws "github.com/ulaundry/laundry-api/internal/websocket"
	"github.com/ulaundry/laundry-api/pkg/auth"
	"github.com/ulaundry/laundry-api/pkg/auth/manager"
)

// Infra is the connected infrastructure. Blobs and Events may be nil.
type Infra struct {
	DB       *gorm.DB
	Redis    redis.UniversalClient
	Email    service.EmailService
	Blobs    service.BlobStore
	Gateway  service.PaymentGateway
	Events   service.EventPublisher
	Registry prometheus.Registerer
	// Sentry adds the sentry-go gin middleware; the client must already be initialised.
	Sentry bool
}

type App struct {
	Engine       *gin.Engine
	Hub          *ws.Hub
	TokenManager *manager.TokenManager
	OTP          *service.OTPService
	Auth         *service.AuthService
	Users        *service.UserService
	Items        *service.LaundryItemService
	Orders       *service.OrderService
}

func New(cfg *config.Config, infra Infra) (*App, error) {
	if infra.DB == nil {
		return nil, errors.New("database is required")
	}
	if infra.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if infra.Email == nil {
		infra.Email = service.NoopEmailService{}
	}
	if infra.Registry == nil {
		infra.Registry = prometheus.NewRegistry()
	}

	userRepo := pgRepo.NewUserRepo(infra.DB)
	codeRepo := pgRepo.NewOneTimeCodeRepo(infra.DB)
	itemRepo := pgRepo.NewLaundryItemRepo(infra.DB)
	orderRepo := pgRepo.NewOrderRepo(infra.DB)

	// A nil *CacheRepo must not reach the service as a non-nil interface.
	var cache repository.CacheRepository
	if infra.Redis != nil {
		cacheRepo, err := redisRepo.NewCacheRepo(infra.Redis, "laundry:")
		if err != nil {
			return nil, fmt.Errorf("cache repo: %w", err)
		}
		cache = cacheRepo
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("jwt service: %w", err)
	}
	tokenManager, err := manager.NewTokenManager(jwtService)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	isProduction := cfg.Server.IsRelease()
	tokenManager.SetProductionMode(isProduction)
	sameSite := http.SameSiteLaxMode
	if isProduction {
		sameSite = http.SameSiteNoneMode
	}
	tokenManager.SetCookieAttributes("/", cfg.Auth.CookieDomain, isProduction, true, sameSite)
	tokenManager.SetCookieMaxAge(cfg.Auth.CookieMaxAge)

	otpService, err := service.NewOTPService(codeRepo, cfg.Auth.OTPTTL, cfg.Auth.OTPMaxAttempts, cfg.Auth.OTPBcryptCost)
	if err != nil {
		return nil, err
	}
	authService, err := service.NewAuthService(userRepo, otpService, tokenManager, infra.Email, infra.Blobs, service.AuthOptions{
		FrontendURL:   cfg.Auth.FrontendURL,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
	})
	if err != nil {
		return nil, err
	}
	userService := service.NewUserService(userRepo, infra.Blobs)

	itemService, err := service.NewLaundryItemService(itemRepo, cache, infra.Blobs)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub()
	orderService, err := service.NewOrderService(orderRepo, itemRepo, userRepo, infra.Gateway, infra.Events, hub, infra.Email)
	if err != nil {
		return nil, err
	}

	authMW, err := middleware.NewAuthMiddleware(tokenManager)
	if err != nil {
		return nil, err
	}

	routes := &handler.Router{
		Auth:        handler.NewAuthHandler(authService, tokenManager),
		Users:       handler.NewUserHandler(userService),
		Items:       handler.NewLaundryItemHandler(itemService),
		Orders:      handler.NewOrderHandler(orderService, cfg.Payment.KeyID),
		WS:          handler.NewWSHandler(hub, ws.NewManager(hub), cfg.CORS.Origins),
		AuthMW:      authMW,
		RateLimiter: middleware.NewRateLimiter(infra.Redis),
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	if infra.Sentry {
		engine.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if isProduction {
		if err := engine.SetTrustedProxies(nil); err != nil {
			return nil, err
		}
	}
	origins := cfg.CORS.Origins
	if len(origins) == 0 {
		origins = []string{cfg.Auth.FrontendURL}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.NewMetrics(infra.Registry).Handler())
	routes.Register(engine)

	return &App{
		Engine:       engine,
		Hub:          hub,
		TokenManager: tokenManager,
		OTP:          otpService,
		Auth:         authService,
		Users:        userService,
		Items:        itemService,
		Orders:       orderService,
	}, nil
}
