package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ulaundry/laundry-api/internal/handler/dto"
	"github.com/ulaundry/laundry-api/internal/middleware"
	"github.com/ulaundry/laundry-api/internal/service"
	"github.com/ulaundry/laundry-api/pkg/auth/manager"
)

// AuthHandler serves the session lifecycle and self-service account routes.
type AuthHandler struct {
	authService  *service.AuthService
	tokenManager *manager.TokenManager
}

func NewAuthHandler(authService *service.AuthService, tokenManager *manager.TokenManager) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenManager: tokenManager,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}
	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		handleError(c, err)
		return
	}
	defer closeAvatar()

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username:   req.Username,
		Name:       req.Name,
		FatherName: req.FatherName,
		Email:      req.Email,
		Password:   req.Password,
		StudentID:  req.StudentID,
		HostelName: req.HostelName,
		RoomNumber: req.RoomNumber,
		DegreeName: req.DegreeName,
		Avatar:     avatar,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "message": "User registered successfully"})
}

// Login verifies the password and emails a code. It never sets cookies.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}
	if err := h.authService.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent to your email"})
}

func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req dto.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and verification code are required")
		return
	}
	session, err := h.authService.VerifyCode(c.Request.Context(), req.Email, req.VerifyCode)
	if err != nil {
		handleError(c, err)
		return
	}
	h.tokenManager.SetTokenCookies(c.Writer, session.Tokens)
	log.Printf("[AuthHandler] user ID=%d signed in", session.User.ID)
	c.JSON(http.StatusOK, dto.SessionResponse{
		User:         session.User,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	})
}

func (h *AuthHandler) RequestNewCode(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email is required")
		return
	}
	if err := h.authService.ResendCode(c.Request.Context(), req.Email); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "A new verification code has been sent to your email"})
}

// RefreshToken accepts the refresh token from the cookie or the JSON body.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := h.tokenManager.GetRefreshTokenFromCookie(c.Request)
	if err != nil || token == "" {
		var req dto.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	session, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		handleError(c, err)
		return
	}
	h.tokenManager.SetTokenCookies(c.Writer, session.Tokens)
	c.JSON(http.StatusOK, dto.SessionResponse{
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		handleError(c, service.ErrUnauthenticated)
		return
	}
	if err := h.authService.Logout(c.Request.Context(), userID); err != nil {
		handleError(c, err)
		return
	}
	h.tokenManager.ClearTokenCookies(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "User logged out successfully"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		handleError(c, service.ErrUnauthenticated)
		return
	}
	user, err := h.authService.GetMe(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email is required")
		return
	}
	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset link sent to your email"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "New password is required")
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), c.Param("resetToken"), req.Password); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Both old and new passwords are required")
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *AuthHandler) UpdateDetails(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	var req dto.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}
	user, err := h.authService.UpdateDetails(c.Request.Context(), userID, req.Username, req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "message": "Account details updated successfully"})
}

func (h *AuthHandler) UpdateAvatar(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		handleError(c, err)
		return
	}
	defer closeAvatar()
	if avatar == nil {
		badRequest(c, "Avatar file is missing")
		return
	}
	user, err := h.authService.UpdateAvatar(c.Request.Context(), userID, *avatar)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "message": "Avatar updated successfully"})
}
