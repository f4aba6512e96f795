package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/pkg/auth"
	"github.com/ulaundry/laundry-api/pkg/auth/manager"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokenManager(t *testing.T) *manager.TokenManager {
	t.Helper()
	jwtService, err := auth.NewJWTService("access-secret", "refresh-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	tm, err := manager.NewTokenManager(jwtService)
	require.NoError(t, err)
	return tm
}

func protectedRouter(t *testing.T, tm *manager.TokenManager, capability entity.Capability) *gin.Engine {
	t.Helper()
	mw, err := NewAuthMiddleware(tm)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", mw.RequireAuth(), RequireCapability(capability), func(c *gin.Context) {
		id, _ := GetUserID(c)
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	tm := newTokenManager(t)
	r := protectedRouter(t, tm, entity.CapOrdersCreate)
	pair, err := tm.GenerateTokenPair(&entity.User{ID: 9, Email: "s@uni.edu", Username: "student0001", Role: entity.RoleStudent})
	require.NoError(t, err)

	tests := []struct {
		name       string
		prepare    func(req *http.Request)
		wantStatus int
		wantType   string
	}{
		{"cookie", func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: manager.AccessTokenCookie, Value: pair.AccessToken})
		}, http.StatusOK, ""},
		{"bearer", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		}, http.StatusOK, ""},
		{"missing", func(req *http.Request) {}, http.StatusUnauthorized, "unauthenticated"},
		{"bad header", func(req *http.Request) {
			req.Header.Set("Authorization", "Token "+pair.AccessToken)
		}, http.StatusUnauthorized, "token_format"},
		{"refresh token as access", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		}, http.StatusUnauthorized, "token_invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantType != "" {
				assert.Contains(t, w.Body.String(), tt.wantType)
			} else {
				assert.Contains(t, w.Body.String(), `"id":9`)
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	tm := newTokenManager(t)
	r := protectedRouter(t, tm, entity.CapCatalogManage)

	for role, want := range map[entity.Role]int{
		entity.RoleStudent:   http.StatusForbidden,
		entity.RoleModerator: http.StatusForbidden,
		entity.RoleAdmin:     http.StatusOK,
	} {
		pair, err := tm.GenerateTokenPair(&entity.User{ID: 1, Email: "a@b.c", Username: "someone000", Role: role})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestExtractUintParam(t *testing.T) {
	r := gin.New()
	r.GET("/items/:itemId", ExtractUintParam("itemId", "item_id"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet("item_id")})
	})

	for path, want := range map[string]int{"/items/12": 200, "/items/abc": 400, "/items/0": 400} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRateLimiter(client)

	r := gin.New()
	r.POST("/login", rl.Limit(RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl:test"}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
		if i == 2 {
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	mr.FastForward(time.Minute + time.Second)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_LimitByIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRateLimiter(client)

	r := gin.New()
	r.POST("/verify-code", rl.LimitByIdentity(RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl:test"}), func(c *gin.Context) {
		var body struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, body.Email)
	})

	send := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/verify-code", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, send(`{"email":"asha@example.com"}`).Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	w := send(`{"email":" Ravi@Example.com "}`)
	assert.Equal(t, http.StatusOK, w.Code, "another student behind the same IP has its own budget")
	assert.Equal(t, " Ravi@Example.com ", w.Body.String(), "the handler still reads the body")

	assert.Equal(t, http.StatusTooManyRequests, send(`{"email":"ASHA@example.com"}`).Code, "emails are compared case-insensitively")

	assert.Equal(t, http.StatusBadRequest, send(`not json`).Code)
	assert.Equal(t, http.StatusBadRequest, send(`not json`).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(`not json`).Code, "bodies without an email share the IP budget")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	rl := NewRateLimiter(client)
	mr.Close()

	r := gin.New()
	r.GET("/x", rl.LimitByIP(RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl"}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := gin.New()
	r.Use(m.Handler())
	r.GET("/items/:itemId", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP laundry_http_requests_total HTTP requests by route, method and status.
# TYPE laundry_http_requests_total counter
laundry_http_requests_total{method="GET",route="/items/:itemId",status="200"} 2
laundry_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "laundry_http_requests_total"))
}
