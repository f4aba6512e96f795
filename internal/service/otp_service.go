package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/domain/repository"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

const otpDigits = 6

// OTPService issues and checks hashed one-time codes.
type OTPService struct {
	repo        repository.OneTimeCodeRepository
	ttl         time.Duration
	maxAttempts int
	hashCost    int
	now         func() time.Time
	generate    func() (string, error)
}

func NewOTPService(repo repository.OneTimeCodeRepository, ttl time.Duration, maxAttempts, hashCost int) (*OTPService, error) {
	if repo == nil {
		return nil, fmt.Errorf("OneTimeCodeRepository is required for OTPService")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = entity.MaxOTPAttempts
	}
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	return &OTPService{
		repo:        repo,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		hashCost:    hashCost,
		now:         time.Now,
		generate:    randomDigits,
	}, nil
}

func (s *OTPService) TTL() time.Duration { return s.ttl }

func randomDigits() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// Issue replaces any outstanding code for (email, purpose) and returns the new plaintext code.
func (s *OTPService) Issue(ctx context.Context, email string, purpose entity.OTPPurpose) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	record := &entity.OneTimeCode{
		Email:     normalizeEmail(email),
		Purpose:   purpose,
		CodeHash:  string(hash),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.repo.Replace(record); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	log.Printf("[OTPService] issued %s code for %s (expires %s)", purpose, record.Email, record.ExpiresAt.Format(time.RFC3339))
	return code, nil
}

// Verify consumes the active code when it matches. A wrong code costs one attempt.
// Once attempts reach the cap the next call gets ErrTooManyAttempts and burns the code.
func (s *OTPService) Verify(ctx context.Context, email string, purpose entity.OTPPurpose, code string) error {
	email = normalizeEmail(email)
	record, err := s.repo.GetLatestActive(email, purpose, s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrCodeExpiredOrMissing
		}
		return fmt.Errorf("load otp: %w", err)
	}

	if record.Attempts >= s.maxAttempts {
		if err := s.repo.MarkUsed(record.ID); err != nil {
			return fmt.Errorf("burn otp: %w", err)
		}
		return ErrTooManyAttempts
	}

	attempts, err := s.repo.IncrementAttempts(record.ID)
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(strings.TrimSpace(code))) != nil {
		// The record stays live so the next attempt reports too_many_attempts.
		remaining := s.maxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		log.Printf("[OTPService] wrong %s code for %s, %d attempts left", purpose, email, remaining)
		return &InvalidCodeError{Remaining: remaining}
	}

	if err := s.repo.MarkUsed(record.ID); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// Cleanup deletes expired codes; cmd/api runs it on a ticker.
func (s *OTPService) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(s.now())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
