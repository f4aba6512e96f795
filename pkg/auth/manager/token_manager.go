package manager

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/pkg/auth"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	// DefaultCookieMaxAge applies to both cookies; the signed exp stays authoritative.
	DefaultCookieMaxAge = 7 * 24 * time.Hour
)

// TokenErrorType classifies token failures for the HTTP layer.
type TokenErrorType string

const (
	TokenGenerationFailed TokenErrorType = "TOKEN_GENERATION_FAILED"
	InvalidAccessToken    TokenErrorType = "INVALID_ACCESS_TOKEN"
	ExpiredAccessToken    TokenErrorType = "EXPIRED_ACCESS_TOKEN"
	InvalidRefreshToken   TokenErrorType = "INVALID_REFRESH_TOKEN"
	ExpiredRefreshToken   TokenErrorType = "EXPIRED_REFRESH_TOKEN"
	MissingToken          TokenErrorType = "MISSING_TOKEN"
)

type TokenError struct {
	Type    TokenErrorType
	Message string
	Err     error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *TokenError) Unwrap() error { return e.Err }

func NewTokenError(tokenType TokenErrorType, message string, err error) *TokenError {
	return &TokenError{Type: tokenType, Message: message, Err: err}
}

// TokenPair is the result of a successful verification or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenManager mints token pairs and moves them in and out of cookies.
type TokenManager struct {
	jwtService *auth.JWTService

	cookieMaxAge   time.Duration
	cookiePath     string
	cookieDomain   string
	cookieSecure   bool
	cookieHttpOnly bool
	cookieSameSite http.SameSite
}

func NewTokenManager(jwtService *auth.JWTService) (*TokenManager, error) {
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for TokenManager")
	}
	return &TokenManager{
		jwtService:     jwtService,
		cookieMaxAge:   DefaultCookieMaxAge,
		cookiePath:     "/",
		cookieHttpOnly: true,
		cookieSameSite: http.SameSiteLaxMode,
	}, nil
}

// SetProductionMode toggles the Secure flag; release builds must serve cookies over TLS only.
func (m *TokenManager) SetProductionMode(isProduction bool) {
	m.cookieSecure = isProduction
	if isProduction {
		m.cookieSameSite = http.SameSiteNoneMode
	}
	log.Printf("[TokenManager] Production mode set to: %v", isProduction)
}

func (m *TokenManager) SetCookieAttributes(path, domain string, secure, httpOnly bool, sameSite http.SameSite) {
	m.cookiePath = path
	m.cookieDomain = domain
	m.cookieSecure = secure
	m.cookieHttpOnly = httpOnly
	m.cookieSameSite = sameSite
}

func (m *TokenManager) SetCookieMaxAge(maxAge time.Duration) {
	if maxAge > 0 {
		m.cookieMaxAge = maxAge
	}
}

func (m *TokenManager) GenerateTokenPair(user *entity.User) (*TokenPair, error) {
	access, err := m.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, NewTokenError(TokenGenerationFailed, "could not sign access token", err)
	}
	refresh, err := m.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return nil, NewTokenError(TokenGenerationFailed, "could not sign refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) ValidateAccessToken(token string) (*auth.AccessClaims, error) {
	if token == "" {
		return nil, NewTokenError(MissingToken, "access token is missing", nil)
	}
	claims, err := m.jwtService.ParseAccessToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, NewTokenError(ExpiredAccessToken, "access token has expired", err)
		}
		return nil, NewTokenError(InvalidAccessToken, "access token is invalid", err)
	}
	return claims, nil
}

func (m *TokenManager) ValidateRefreshToken(token string) (*auth.RefreshClaims, error) {
	if token == "" {
		return nil, NewTokenError(MissingToken, "refresh token is missing", nil)
	}
	claims, err := m.jwtService.ParseRefreshToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, NewTokenError(ExpiredRefreshToken, "refresh token has expired", err)
		}
		return nil, NewTokenError(InvalidRefreshToken, "refresh token is invalid", err)
	}
	return claims, nil
}

func (m *TokenManager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		HttpOnly: m.cookieHttpOnly,
		Secure:   m.cookieSecure,
		SameSite: m.cookieSameSite,
		MaxAge:   maxAge,
	}
}

// SetTokenCookies writes both cookies with the configured max-age.
func (m *TokenManager) SetTokenCookies(w http.ResponseWriter, pair *TokenPair) {
	maxAge := int(m.cookieMaxAge.Seconds())
	http.SetCookie(w, m.cookie(AccessTokenCookie, pair.AccessToken, maxAge))
	http.SetCookie(w, m.cookie(RefreshTokenCookie, pair.RefreshToken, maxAge))
}

func (m *TokenManager) ClearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, m.cookie(RefreshTokenCookie, "", -1))
}

func (m *TokenManager) GetAccessTokenFromCookie(r *http.Request) (string, error) {
	return readCookie(r, AccessTokenCookie)
}

func (m *TokenManager) GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	return readCookie(r, RefreshTokenCookie)
}

func readCookie(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", NewTokenError(MissingToken, name+" cookie is missing", err)
		}
		return "", err
	}
	if cookie.Value == "" {
		return "", NewTokenError(MissingToken, name+" cookie is empty", nil)
	}
	return cookie.Value, nil
}
