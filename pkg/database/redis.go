package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ulaundry/laundry-api/internal/config"
)

// redisOptions validates the mode against the addresses given.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis configuration error: addrs or addr must be provided")
	}

	opts := &redis.UniversalOptions{
		Addrs:           addrs,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoff) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoff) * time.Millisecond,
	}

	switch cfg.Mode {
	case "", "single":
		opts.Addrs = addrs[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("redis sentinel mode requires master_name")
		}
		opts.MasterName = cfg.MasterName
	case "cluster":
		if len(addrs) < 2 {
			return nil, fmt.Errorf("redis cluster mode requires at least two addrs, got %d", len(addrs))
		}
	default:
		return nil, fmt.Errorf("unsupported redis mode %q", cfg.Mode)
	}
	return opts, nil
}

// NewUniversalRedisClient builds a single, sentinel or cluster client and pings it.
// Rate limiting and the catalog cache share this client.
func NewUniversalRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %v: %w", opts.Addrs, err)
	}
	return client, nil
}
