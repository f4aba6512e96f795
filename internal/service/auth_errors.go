package service

import (
	"errors"
	"fmt"
)

// Session-flow errors; handlers map each one to a stable error_type.
var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrCodeExpiredOrMissing = errors.New("verification code expired or not found")
	ErrTooManyAttempts      = errors.New("too many verification attempts")
	ErrInvalidToken         = errors.New("invalid or expired refresh token")
	ErrRevokedToken         = errors.New("refresh token has been revoked")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrInvalidResetToken    = errors.New("reset token is invalid or expired")
)

// InvalidCodeError reports a wrong code together with the attempts left on it.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s, %d attempts remaining", ErrInvalidCode, e.Remaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }
