package repository

import (
	"time"
)

// CacheRepository is a small key/value cache abstraction over Redis.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(keys ...string) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
}
