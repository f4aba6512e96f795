package dto

import "github.com/ulaundry/laundry-api/internal/domain/entity"

// PaginatedUsersResponse is the admin user listing.
type PaginatedUsersResponse struct {
	Users   []entity.User `json:"users"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"perPage"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyCodeRequest struct {
	Email      string `json:"email" binding:"required"`
	VerifyCode string `json:"verifyCode" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type UpdateDetailsRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// SessionResponse is returned by verify-code and refresh-token alongside the cookies.
type SessionResponse struct {
	User         *entity.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// RegisterRequest binds both multipart forms (with an avatar file) and JSON.
type RegisterRequest struct {
	Username   string `form:"username" json:"username"`
	Name       string `form:"name" json:"name"`
	FatherName string `form:"fatherName" json:"fatherName"`
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	StudentID  int64  `form:"studentId" json:"studentId"`
	HostelName string `form:"hostelName" json:"hostelName"`
	RoomNumber string `form:"roomNumber" json:"roomNumber"`
	DegreeName string `form:"degreeName" json:"degreeName"`
}
