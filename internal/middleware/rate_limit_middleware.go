package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultAuthRateLimitConfig covers the /users group as a whole.
func DefaultAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 60, Window: time.Minute, KeyPrefix: "rl:users"}
}

// StrictAuthRateLimitConfig guards credential and code endpoints against brute force.
// It sits above the OTP attempt cap so a user who runs out of guesses can still
// request a new code and use it inside the same window.
func StrictAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 10, Window: time.Minute, KeyPrefix: "rl:users:strict"}
}

// maxPeekBody bounds how much of a request body LimitByIdentity reads.
const maxPeekBody = 64 << 10

// fixedWindow increments the counter and starts the window on the first hit.
// Returns {count, milliseconds left in the window}.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RateLimiter counts requests per fixed window in Redis. A nil client or a
// Redis failure lets the request through.
type RateLimiter struct {
	redisClient redis.UniversalClient
}

func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// Limit keys by client IP and route pattern.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit(cfg, func(c *gin.Context) string {
		return routeKey(cfg, c)
	})
}

// LimitByIdentity adds the JSON body's email to the IP and route key, so students
// behind one hostel NAT do not share a budget. Requests without an email fall back
// to IP and route. The group-wide IP limit still caps spraying across emails.
func (rl *RateLimiter) LimitByIdentity(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit(cfg, func(c *gin.Context) string {
		key := routeKey(cfg, c)
		if email := peekEmail(c); email != "" {
			key += ":" + email
		}
		return key
	})
}

func routeKey(cfg RateLimitConfig, c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return cfg.KeyPrefix + ":" + c.ClientIP() + ":" + route
}

type peekedBody struct {
	io.Reader
	io.Closer
}

// peekEmail reads the "email" field and puts the bytes back for the handler.
func peekEmail(c *gin.Context) string {
	body := c.Request.Body
	if body == nil || body == http.NoBody {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxPeekBody+1))
	c.Request.Body = peekedBody{Reader: io.MultiReader(bytes.NewReader(raw), body), Closer: body}
	if err != nil || len(raw) > maxPeekBody {
		return ""
	}

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

// LimitByIP shares one budget across everything behind it.
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit(cfg, func(c *gin.Context) string {
		return cfg.KeyPrefix + ":" + c.ClientIP()
	})
}

func (rl *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := fixedWindow.Run(ctx, rl.redisClient, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit reply %v", res)
	}
	count, _ := vals[0].(int64)
	pttl, _ := vals[1].(int64)
	if pttl < 0 {
		pttl = window.Milliseconds()
	}
	return count, time.Duration(pttl) * time.Millisecond, nil
}

func (rl *RateLimiter) limit(cfg RateLimitConfig, keyFor func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.redisClient == nil {
			c.Next()
			return
		}
		key := keyFor(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		count, left, err := rl.hit(ctx, key, cfg.Window)
		cancel()
		if err != nil {
			log.Printf("[RateLimiter] redis unavailable for %s, allowing request: %v", key, err)
			c.Next()
			return
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetIn := int(math.Ceil(left.Seconds()))

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetIn))

		if int(count) > cfg.MaxRequests {
			log.Printf("[RateLimiter] limit exceeded for %s (%d/%d)", key, count, cfg.MaxRequests)
			c.Header("Retry-After", strconv.Itoa(resetIn))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": resetIn,
			})
			return
		}
		c.Next()
	}
}
