package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ulaundry/laundry-api/internal/app"
	"github.com/ulaundry/laundry-api/internal/config"
	"github.com/ulaundry/laundry-api/internal/queue"
	"github.com/ulaundry/laundry-api/internal/service"
	"github.com/ulaundry/laundry-api/pkg/database"
	"github.com/ulaundry/laundry-api/pkg/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not read .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.Server.Mode)

	sentryEnabled := false
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			log.Printf("Sentry init failed, continuing without it: %v", err)
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !cfg.Server.IsRelease())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	migrationsSource := os.Getenv("MIGRATIONS_SOURCE")
	if migrationsSource == "" {
		migrationsSource = "file://migrations"
	}
	if err := database.MigrateDB(db, migrationsSource); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	emailService, err := service.NewEmailService(cfg.Email.Provider, cfg.Email.From, cfg.Email.ResendAPIKey,
		cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPassword)
	if err != nil {
		log.Printf("Failed to initialize email service: %v", err)
		os.Exit(1)
	}

	var blobs service.BlobStore
	if cfg.Storage.Enabled() {
		store, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			log.Printf("Failed to initialize object storage: %v", err)
			os.Exit(1)
		}
		blobs = store
	} else {
		log.Println("Object storage disabled, avatar and item image uploads are ignored")
	}

	gateway, err := service.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.BaseURL,
		&http.Client{Timeout: 15 * time.Second})
	if err != nil {
		log.Printf("Failed to initialize payment gateway: %v", err)
		os.Exit(1)
	}

	// With a broker, order emails are sent by the queue consumer.
	var events service.EventPublisher
	if cfg.Queue.URL != "" {
		publisher, err := queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Exchange)
		if err != nil {
			log.Printf("Failed to connect to message broker: %v", err)
			os.Exit(1)
		}
		defer publisher.Close()
		events = publisher

		consumer, err := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Exchange, emailService)
		if err != nil {
			log.Printf("Failed to initialize queue consumer: %v", err)
			os.Exit(1)
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[Queue] consumer stopped: %v", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	application, err := app.New(cfg, app.Infra{
		DB:       db,
		Redis:    redisClient,
		Email:    emailService,
		Blobs:    blobs,
		Gateway:  gateway,
		Events:   events,
		Registry: registry,
		Sentry:   sentryEnabled,
	})
	if err != nil {
		log.Printf("Failed to build application: %v", err)
		os.Exit(1)
	}
	application.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	cleanupEvery := cfg.Auth.OTPCleanupEvery
	if cleanupEvery <= 0 {
		cleanupEvery = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(cleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := application.OTP.Cleanup(ctx)
				if err != nil {
					log.Printf("[OTP] cleanup failed: %v", err)
				} else if n > 0 {
					log.Printf("[OTP] removed %d expired codes", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      application.Engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	cancel()
	application.Hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server exited properly")
}
