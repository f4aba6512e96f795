package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/pkg/auth/manager"
)

// Context keys set by RequireAuth.
const (
	ContextUserID   = "user_id"
	ContextEmail    = "email"
	ContextUsername = "username"
	ContextRole     = "role"
)

// AuthMiddleware authenticates requests with the access token.
type AuthMiddleware struct {
	tokenManager *manager.TokenManager
}

func NewAuthMiddleware(tokenManager *manager.TokenManager) (*AuthMiddleware, error) {
	if tokenManager == nil {
		return nil, errors.New("TokenManager is required for AuthMiddleware")
	}
	return &AuthMiddleware{tokenManager: tokenManager}, nil
}

// RequireAuth reads the access token from the cookie, falling back to an Authorization: Bearer header.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := m.tokenManager.GetAccessTokenFromCookie(c.Request)
		if err != nil {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized request", "error_type": "unauthenticated"})
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
				return
			}
			token = parts[1]
		}

		claims, err := m.tokenManager.ValidateAccessToken(token)
		if err != nil {
			errorType := "token_invalid"
			var tokenErr *manager.TokenError
			if errors.As(err, &tokenErr) && tokenErr.Type == manager.ExpiredAccessToken {
				errorType = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid access token", "error_type": errorType})
			return
		}

		role, err := entity.ParseRole(claims.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid access token", "error_type": "token_invalid"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireCapability must run after RequireAuth.
func RequireCapability(capability entity.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized request", "error_type": "unauthenticated"})
			return
		}
		if !role.Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

func GetRole(c *gin.Context) (entity.Role, bool) {
	v, ok := c.Get(ContextRole)
	if !ok {
		return "", false
	}
	role, ok := v.(entity.Role)
	return role, ok
}
