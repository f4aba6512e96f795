package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/domain/repository"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
	"github.com/ulaundry/laundry-api/pkg/auth"
	"github.com/ulaundry/laundry-api/pkg/auth/manager"
)

const minUsernameLength = 10

// TokenIssuer mints and checks session tokens. *manager.TokenManager implements it.
type TokenIssuer interface {
	GenerateTokenPair(user *entity.User) (*manager.TokenPair, error)
	ValidateRefreshToken(token string) (*auth.RefreshClaims, error)
}

// Session is what a successful code verification or refresh hands back.
type Session struct {
	User   *entity.User
	Tokens *manager.TokenPair
}

type AuthOptions struct {
	FrontendURL   string
	ResetTokenTTL time.Duration
}

// AuthService drives the credential -> OTP -> token session lifecycle and account upkeep.
type AuthService struct {
	users  repository.UserRepository
	otp    *OTPService
	tokens TokenIssuer
	email  EmailService
	blobs  BlobStore

	frontendURL   string
	resetTokenTTL time.Duration
	now           func() time.Time
}

// NewAuthService wires the service. blobs may be nil, which disables avatar uploads.
func NewAuthService(
	users repository.UserRepository,
	otp *OTPService,
	tokens TokenIssuer,
	email EmailService,
	blobs BlobStore,
	opts AuthOptions,
) (*AuthService, error) {
	if users == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if otp == nil {
		return nil, fmt.Errorf("OTPService is required for AuthService")
	}
	if tokens == nil {
		return nil, fmt.Errorf("TokenIssuer is required for AuthService")
	}
	if email == nil {
		return nil, fmt.Errorf("EmailService is required for AuthService")
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = 15 * time.Minute
	}
	return &AuthService{
		users:         users,
		otp:           otp,
		tokens:        tokens,
		email:         email,
		blobs:         blobs,
		frontendURL:   strings.TrimRight(opts.FrontendURL, "/"),
		resetTokenTTL: opts.ResetTokenTTL,
		now:           time.Now,
	}, nil
}

type RegisterInput struct {
	Username   string
	Name       string
	FatherName string
	Email      string
	Password   string
	StudentID  int64
	HostelName string
	RoomNumber string
	DegreeName string
	Avatar     *Upload
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	input.Email = normalizeEmail(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	input.Name = strings.TrimSpace(input.Name)
	input.FatherName = strings.TrimSpace(input.FatherName)
	input.HostelName = strings.ToUpper(strings.TrimSpace(input.HostelName))
	input.RoomNumber = strings.TrimSpace(input.RoomNumber)
	input.DegreeName = strings.ToUpper(strings.TrimSpace(input.DegreeName))
	if input.DegreeName == "" {
		input.DegreeName = entity.DefaultDegree
	}

	if input.Username == "" || input.Name == "" || input.FatherName == "" || input.Email == "" ||
		input.Password == "" || input.RoomNumber == "" || input.StudentID <= 0 || input.HostelName == "" {
		return nil, fmt.Errorf("%w: all fields are mandatory", apperrors.ErrValidation)
	}
	if len([]rune(input.Username)) < minUsernameLength {
		return nil, fmt.Errorf("%w: username must be at least %d characters", apperrors.ErrValidation, minUsernameLength)
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	if !entity.ValidHostel(input.HostelName) {
		return nil, fmt.Errorf("%w: unknown hostel %q", apperrors.ErrValidation, input.HostelName)
	}
	if !entity.ValidDegree(input.DegreeName) {
		return nil, fmt.Errorf("%w: unknown degree %q", apperrors.ErrValidation, input.DegreeName)
	}

	existing, err := s.users.FindConflict(input.Username, input.Email, input.StudentID)
	switch {
	case err == nil:
		return nil, conflictFor(existing, input)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}

	user := &entity.User{
		Username:   input.Username,
		Email:      input.Email,
		Password:   input.Password,
		Name:       input.Name,
		FatherName: input.FatherName,
		StudentID:  input.StudentID,
		HostelName: input.HostelName,
		RoomNumber: input.RoomNumber,
		DegreeName: input.DegreeName,
		Role:       entity.RoleStudent,
	}

	if input.Avatar != nil && s.blobs != nil {
		key, url, err := s.blobs.Put(ctx, "avatars", *input.Avatar)
		if err != nil {
			return nil, uploadError("avatar", err)
		}
		user.AvatarKey, user.AvatarURL = key, url
	}

	if err := s.users.Create(user); err != nil {
		if user.AvatarKey != "" {
			if delErr := s.blobs.Delete(ctx, user.AvatarKey); delErr != nil {
				log.Printf("[AuthService] orphaned avatar %s: %v", user.AvatarKey, delErr)
			}
		}
		return nil, err
	}
	log.Printf("[AuthService] registered user ID=%d username=%s", user.ID, user.Username)
	return user, nil
}

func conflictFor(existing *entity.User, input RegisterInput) error {
	switch {
	case existing.Email == input.Email:
		return fmt.Errorf("%w: email already exists", apperrors.ErrConflict)
	case existing.Username == input.Username:
		return fmt.Errorf("%w: username already exists", apperrors.ErrConflict)
	default:
		return fmt.Errorf("%w: student id already exists", apperrors.ErrConflict)
	}
}

// Login checks the password and emails a login code. No tokens are issued here.
func (s *AuthService) Login(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CheckPassword(password) {
		log.Printf("[AuthService] wrong password for user ID=%d", user.ID)
		return ErrInvalidCredentials
	}

	return s.sendCode(ctx, user, "U-Laundry Login OTP", "Your login verification code is:")
}

// ResendCode issues a fresh login code without a password check.
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	return s.sendCode(ctx, user, "U-Laundry New Verification Code", "Your new verification code is:")
}

func (s *AuthService) sendCode(ctx context.Context, user *entity.User, subject, intro string) error {
	code, err := s.otp.Issue(ctx, user.Email, entity.OTPPurposeLogin)
	if err != nil {
		return err
	}
	html, err := otpEmail(intro, code, s.otp.TTL())
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}
	if err := s.email.Send(ctx, user.Email, subject, html); err != nil {
		log.Printf("[AuthService] otp email to user ID=%d failed: %v", user.ID, err)
		return fmt.Errorf("%w: could not send verification email", apperrors.ErrUpstream)
	}
	return nil
}

// VerifyCode consumes a login code and starts a session.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: email and verification code are required", apperrors.ErrValidation)
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		// An unknown email looks the same as one with no live code.
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrCodeExpiredOrMissing
		}
		return nil, err
	}
	if err := s.otp.Verify(ctx, email, entity.OTPPurposeLogin, code); err != nil {
		return nil, err
	}

	if !user.IsVerified {
		if err := s.users.UpdateProfile(user.ID, map[string]interface{}{"is_verified": true}); err != nil {
			log.Printf("[AuthService] could not mark user ID=%d verified: %v", user.ID, err)
		} else {
			user.IsVerified = true
		}
	}
	return s.startSession(user)
}

// startSession signs a pair and stores the refresh token, replacing any previous one.
func (s *AuthService) startSession(user *entity.User) (*Session, error) {
	pair, err := s.tokens.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshToken(user.ID, &pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return &Session{User: user, Tokens: pair}, nil
}

// Refresh rotates the pair. A token that verifies but is not the stored one has been
// superseded or revoked. Concurrent refreshes resolve last-write-wins.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.HasRefreshToken(refreshToken) {
		log.Printf("[AuthService] stale refresh token presented for user ID=%d", user.ID)
		return nil, ErrRevokedToken
	}
	return s.startSession(user)
}

// Logout revokes the stored refresh token. Calling it twice is harmless.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	return s.users.SetRefreshToken(userID, nil)
}

func (s *AuthService) GetMe(ctx context.Context, userID uint) (*entity.User, error) {
	return s.users.GetByID(userID)
}

// ForgotPassword emails a single-use reset link. Only the sha256 of the token is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	hash := hashResetToken(token)
	expiry := s.now().Add(s.resetTokenTTL)
	if err := s.users.SetResetToken(user.ID, &hash, &expiry); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	html, err := resetPasswordEmail(s.frontendURL+"/auth/reset-password/"+token, s.resetTokenTTL)
	if err == nil {
		err = s.email.Send(ctx, user.Email, "Reset Password Token", html)
	}
	if err != nil {
		log.Printf("[AuthService] reset email to user ID=%d failed: %v", user.ID, err)
		if clearErr := s.users.SetResetToken(user.ID, nil, nil); clearErr != nil {
			log.Printf("[AuthService] could not clear reset token for user ID=%d: %v", user.ID, clearErr)
		}
		return fmt.Errorf("%w: could not send reset password email", apperrors.ErrUpstream)
	}
	return nil
}

// ResetPassword sets a new password and ends every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", apperrors.ErrValidation)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByResetTokenHash(hashResetToken(token), s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if err := s.users.UpdatePassword(user.ID, newPassword); err != nil {
		return err
	}
	if err := s.users.SetResetToken(user.ID, nil, nil); err != nil {
		return err
	}
	return s.users.SetRefreshToken(user.ID, nil)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: both old and new passwords are required", apperrors.ErrValidation)
	}
	if oldPassword == newPassword {
		return fmt.Errorf("%w: new password must be different from old password", apperrors.ErrValidation)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	return s.users.UpdatePassword(userID, newPassword)
}

// UpdateDetails changes username and/or name; empty values are left alone.
func (s *AuthService) UpdateDetails(ctx context.Context, userID uint, username, name string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	if username == "" && name == "" {
		return nil, fmt.Errorf("%w: at least one field (username or name) is required", apperrors.ErrValidation)
	}

	updates := map[string]interface{}{}
	if username != "" {
		if len([]rune(username)) < minUsernameLength {
			return nil, fmt.Errorf("%w: username must be at least %d characters", apperrors.ErrValidation, minUsernameLength)
		}
		other, err := s.users.GetByUsername(username)
		switch {
		case err == nil && other.ID != userID:
			return nil, fmt.Errorf("%w: username already exists", apperrors.ErrConflict)
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			return nil, err
		}
		updates["username"] = username
	}
	if name != "" {
		updates["name"] = name
	}

	if err := s.users.UpdateProfile(userID, updates); err != nil {
		return nil, err
	}
	return s.users.GetByID(userID)
}

// UpdateAvatar stores the new image and then drops the old object.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID uint, file Upload) (*entity.User, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", apperrors.ErrUpstream)
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	key, url, err := s.blobs.Put(ctx, "avatars", file)
	if err != nil {
		return nil, uploadError("avatar", err)
	}
	if err := s.users.UpdateProfile(userID, map[string]interface{}{"avatar_url": url, "avatar_key": key}); err != nil {
		return nil, err
	}
	if user.AvatarKey != "" {
		if err := s.blobs.Delete(ctx, user.AvatarKey); err != nil {
			log.Printf("[AuthService] could not delete old avatar %s: %v", user.AvatarKey, err)
		}
	}
	user.AvatarURL, user.AvatarKey = url, key
	return user, nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	}
	return nil
}

// validatePassword requires 8+ characters with a letter, a digit and a special character.
func validatePassword(password string) error {
	var letter, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r):
			special = true
		}
	}
	if len([]rune(password)) < 8 || !letter || !digit || !special {
		return fmt.Errorf("%w: password must be at least 8 characters and contain a letter, a digit and a special character", apperrors.ErrValidation)
	}
	return nil
}
