package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
	"github.com/ulaundry/laundry-api/internal/service"
	"github.com/ulaundry/laundry-api/pkg/auth/manager"
)

// handleError maps service errors to a status and a stable error_type.
func handleError(c *gin.Context, err error) {
	var codeErr *service.InvalidCodeError
	var tokenErr *manager.TokenError

	switch {
	case errors.As(err, &codeErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      codeErr.Error(),
			"error_type": "invalid_code",
			"remaining":  codeErr.Remaining,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_credentials"})
	case errors.Is(err, service.ErrCodeExpiredOrMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "code_expired"})
	case errors.Is(err, service.ErrTooManyAttempts):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many attempts. Request a new code.", "error_type": "too_many_attempts"})
	case errors.Is(err, service.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_reset_token"})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_signature"})
	case errors.Is(err, service.ErrItemUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "item_unavailable"})
	case errors.Is(err, service.ErrRevokedToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "error_type": "token_revoked"})
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "error_type": "token_invalid"})
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized request", "error_type": "unauthenticated"})
	case errors.Is(err, apperrors.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "error_type": "token_expired"})
	case errors.As(err, &tokenErr):
		if tokenErr.Type == manager.TokenGenerationFailed {
			log.Printf("[Handler] token generation failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong while generating tokens", "error_type": "token_generation_failed"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": tokenErr.Message, "error_type": "token_invalid"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action", "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrUpstream):
		log.Printf("[Handler] upstream failure: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "error_type": "upstream_failure"})
	default:
		log.Printf("[Handler] internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "error_type": "validation_error"})
}
