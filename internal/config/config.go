package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Email    EmailConfig
	Storage  StorageConfig
	Payment  PaymentConfig
	Queue    QueueConfig
	CORS     CORSConfig
	Sentry   SentryConfig
}

type ServerConfig struct {
	Port         string
	Mode         string `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// IsRelease reports whether cookies and error output should be production-hardened.
func (s ServerConfig) IsRelease() bool {
	return s.Mode == "release"
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig supports single, sentinel and cluster modes.
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
	MaxRetries int      `mapstructure:"max_retries"`
	// Backoffs in milliseconds.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

type JWTConfig struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshExpiry time.Duration `mapstructure:"refresh_expiry"`
}

type AuthConfig struct {
	OTPTTL          time.Duration `mapstructure:"otp_ttl"`
	OTPMaxAttempts  int           `mapstructure:"otp_max_attempts"`
	OTPBcryptCost   int           `mapstructure:"otp_bcrypt_cost"`
	CookieMaxAge    time.Duration `mapstructure:"cookie_max_age"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
	ResetTokenTTL   time.Duration `mapstructure:"reset_token_ttl"`
	FrontendURL     string        `mapstructure:"frontend_url"`
	OTPCleanupEvery time.Duration `mapstructure:"otp_cleanup_interval"`
}

type EmailConfig struct {
	Provider     string `mapstructure:"provider"` // resend, smtp or noop
	From         string `mapstructure:"from"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// Enabled is false when no bucket is configured; uploads are then skipped.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type PaymentConfig struct {
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

type QueueConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL is the URL form golang-migrate expects.
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

var envBindings = map[string]string{
	"server.port":          "SERVER_PORT",
	"server.mode":          "GIN_MODE",
	"server.read_timeout":  "SERVER_READ_TIMEOUT",
	"server.write_timeout": "SERVER_WRITE_TIMEOUT",

	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.dbname":   "DATABASE_DBNAME",
	"database.sslmode":  "DATABASE_SSLMODE",

	"redis.mode":        "REDIS_MODE",
	"redis.addrs":       "REDIS_ADDRS",
	"redis.addr":        "REDIS_ADDR",
	"redis.password":    "REDIS_PASSWORD",
	"redis.db":          "REDIS_DB",
	"redis.master_name": "REDIS_MASTER_NAME",

	"jwt.access_secret":  "ACCESS_TOKEN_SECRET",
	"jwt.refresh_secret": "REFRESH_TOKEN_SECRET",
	"jwt.access_expiry":  "ACCESS_TOKEN_EXPIRY",
	"jwt.refresh_expiry": "REFRESH_TOKEN_EXPIRY",

	"auth.otp_ttl":              "OTP_TTL",
	"auth.otp_max_attempts":     "OTP_MAX_ATTEMPTS",
	"auth.otp_bcrypt_cost":      "OTP_BCRYPT_COST",
	"auth.cookie_max_age":       "COOKIE_MAX_AGE",
	"auth.cookie_domain":        "COOKIE_DOMAIN",
	"auth.reset_token_ttl":      "RESET_TOKEN_TTL",
	"auth.frontend_url":         "FRONTEND_URL",
	"auth.otp_cleanup_interval": "OTP_CLEANUP_INTERVAL",

	"email.provider":       "EMAIL_PROVIDER",
	"email.from":           "EMAIL_FROM",
	"email.resend_api_key": "RESEND_API_KEY",
	"email.smtp_host":      "SMTP_HOST",
	"email.smtp_port":      "SMTP_PORT",
	"email.smtp_user":      "SMTP_USER",
	"email.smtp_password":  "SMTP_PASSWORD",

	"storage.bucket":            "S3_BUCKET",
	"storage.region":            "S3_REGION",
	"storage.endpoint":          "S3_ENDPOINT",
	"storage.access_key_id":     "S3_ACCESS_KEY_ID",
	"storage.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"storage.public_base_url":   "S3_PUBLIC_BASE_URL",

	"payment.key_id":     "RAZORPAY_KEY_ID",
	"payment.key_secret": "RAZORPAY_KEY_SECRET",
	"payment.base_url":   "RAZORPAY_BASE_URL",

	"queue.url":      "RABBITMQ_URL",
	"queue.exchange": "RABBITMQ_EXCHANGE",

	"cors.origins": "CORS_ORIGINS",

	"sentry.dsn":         "SENTRY_DSN",
	"sentry.environment": "SENTRY_ENVIRONMENT",
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.mode", "debug")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("jwt.access_expiry", 15*time.Minute)
	vip.SetDefault("jwt.refresh_expiry", 7*24*time.Hour)
	vip.SetDefault("auth.otp_ttl", 2*time.Minute)
	vip.SetDefault("auth.otp_max_attempts", 5)
	vip.SetDefault("auth.otp_bcrypt_cost", 10)
	vip.SetDefault("auth.cookie_max_age", 7*24*time.Hour)
	vip.SetDefault("auth.reset_token_ttl", 15*time.Minute)
	vip.SetDefault("auth.frontend_url", "http://localhost:5173")
	vip.SetDefault("auth.otp_cleanup_interval", 10*time.Minute)
	vip.SetDefault("email.provider", "noop")
	vip.SetDefault("email.from", "Laundry <no-reply@laundry.local>")
	vip.SetDefault("email.smtp_port", 587)
	vip.SetDefault("storage.region", "ap-south-1")
	vip.SetDefault("payment.base_url", "https://api.razorpay.com/v1")
	vip.SetDefault("queue.exchange", "laundry.orders")
	vip.SetDefault("cors.origins", []string{"http://localhost:5173"})
}

// Load reads an optional config file, overlays explicitly bound env vars and validates the result.
func Load(configPath string) (*Config, error) {
	vip := viper.New()
	setDefaults(vip)

	for key, env := range envBindings {
		if err := vip.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				log.Printf("[Config] file '%s' not found, using env and defaults", configPath)
			} else {
				log.Printf("[Config] warning: could not read '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !cfg.Server.IsRelease() {
		log.Printf("[Config] db=%s@%s:%s/%s redis=%s/%s email=%s storage=%t queue=%t",
			cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName,
			cfg.Redis.Mode, cfg.Redis.Addr, cfg.Email.Provider, cfg.Storage.Enabled(), cfg.Queue.URL != "")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt secrets are required (check ACCESS_TOKEN_SECRET, REFRESH_TOKEN_SECRET env vars)")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Auth.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}
	switch c.Email.Provider {
	case "resend":
		if c.Email.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
		}
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case "noop":
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.Email.Provider)
	}
	if c.Server.IsRelease() {
		if c.Database.Password == "" {
			return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
		}
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			return fmt.Errorf("razorpay credentials are required in release mode")
		}
	}
	return nil
}
