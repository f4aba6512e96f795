package entity

import "time"

// OTPPurpose scopes a one-time code to a single flow.
type OTPPurpose string

const (
	OTPPurposeLogin             OTPPurpose = "login"
	OTPPurposeEmailVerification OTPPurpose = "email-verification"
	OTPPurposePasswordReset     OTPPurpose = "password-reset"
)

// MaxOTPAttempts caps verification attempts per code.
const MaxOTPAttempts = 5

// OneTimeCode stores a hashed, short-lived code emailed to prove control of an address.
type OneTimeCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"size:100;not null;index:idx_otp_email_purpose" json:"email"`
	Purpose   OTPPurpose `gorm:"size:32;not null;index:idx_otp_email_purpose" json:"purpose"`
	CodeHash  string     `gorm:"size:100;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expiresAt"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	Used      bool       `gorm:"not null;default:false" json:"used"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (OneTimeCode) TableName() string {
	return "one_time_codes"
}

func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AttemptsLeft returns how many verification attempts remain.
func (c *OneTimeCode) AttemptsLeft() int {
	left := MaxOTPAttempts - c.Attempts
	if left < 0 {
		return 0
	}
	return left
}
