package auth

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
)

var (
	// ErrTokenExpired is returned for a well-formed token whose exp has passed.
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenMalformed covers bad signatures, unexpected algorithms and garbled input.
	ErrTokenMalformed = errors.New("token is malformed")
)

const issuer = "laundry-api"

// AccessClaims identify the caller on every authenticated request.
type AccessClaims struct {
	UserID   uint   `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the subject; the stored copy on the user decides validity.
type RefreshClaims struct {
	UserID uint `json:"id"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies the access/refresh pair with separate HMAC secrets.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTService validates secrets and applies 15m/7d defaults to non-positive TTLs.
func NewJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*JWTService, error) {
	if accessSecret == "" {
		return nil, fmt.Errorf("access token secret is required for JWTService")
	}
	if refreshSecret == "" {
		return nil, fmt.Errorf("refresh token secret is required for JWTService")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

func (s *JWTService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *JWTService) registered(userID uint, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *JWTService) GenerateAccessToken(user *entity.User) (string, error) {
	if user == nil || user.ID == 0 {
		return "", errors.New("cannot sign access token for empty user")
	}
	claims := &AccessClaims{
		UserID:           user.ID,
		Email:            user.Email,
		Username:         user.Username,
		Role:             user.Role.String(),
		RegisteredClaims: s.registered(user.ID, s.accessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *JWTService) GenerateRefreshToken(user *entity.User) (string, error) {
	if user == nil || user.ID == 0 {
		return "", errors.New("cannot sign refresh token for empty user")
	}
	claims := &RefreshClaims{
		UserID:           user.ID,
		RegisteredClaims: s.registered(user.ID, s.refreshTTL),
	}
	// jti keeps two refresh tokens minted in the same second distinct.
	claims.ID = uuid.NewString()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

func (s *JWTService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, claims, s.accessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (s *JWTService) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	if tokenString == "" {
		return ErrTokenMalformed
	}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		// Expired alone means the signature checked out.
		if errors.As(err, &ve) && ve.Errors == jwt.ValidationErrorExpired {
			return ErrTokenExpired
		}
		log.Printf("[JWT] token rejected: %v", err)
		return ErrTokenMalformed
	}
	if !token.Valid {
		return ErrTokenMalformed
	}
	return nil
}
