package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// CacheRepo backs repository.CacheRepository with a Redis client.
type CacheRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewCacheRepo namespaces every key under prefix (for example "laundry:").
func NewCacheRepo(client redis.UniversalClient, prefix string) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required for CacheRepo")
	}
	return &CacheRepo{client: client, prefix: prefix}, nil
}

func (r *CacheRepo) key(k string) string {
	return r.prefix + k
}

func (r *CacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(context.Background(), r.key(key), value, expiration).Err()
}

// Get returns apperrors.ErrNotFound on a cache miss.
func (r *CacheRepo) Get(key string) (string, error) {
	val, err := r.client.Get(context.Background(), r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrNotFound
	}
	return val, err
}

func (r *CacheRepo) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(context.Background(), full...).Err()
}

func (r *CacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	return r.client.Set(context.Background(), r.key(key), data, expiration).Err()
}

func (r *CacheRepo) GetJSON(key string, dest interface{}) error {
	data, err := r.client.Get(context.Background(), r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetNX reports whether the key was newly set.
func (r *CacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	return r.client.SetNX(context.Background(), r.key(key), value, expiration).Result()
}
