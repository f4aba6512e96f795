package entity

import (
	"crypto/subtle"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Hostels accepted at registration.
var Hostels = []string{"BOSE", "ARYABHATTA", "SARABHAI", "CHANKAYA", "TERESA", "GARGI", "KALPANA"}

// Degrees accepted at registration.
var Degrees = []string{"BCA", "BE", "PHARMA", "NURS"}

// DefaultDegree is used when the registration form omits the degree.
const DefaultDegree = "BE"

// User is a student, moderator or admin account.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Username   string `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email      string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password   string `gorm:"size:100;not null" json:"-"`
	Name       string `gorm:"size:100;not null" json:"name"`
	FatherName string `gorm:"size:100;not null;default:''" json:"fatherName"`
	StudentID  int64  `gorm:"not null;uniqueIndex" json:"studentId"`
	HostelName string `gorm:"size:20;not null" json:"hostelName"`
	RoomNumber string `gorm:"size:20;not null" json:"roomNumber"`
	DegreeName string `gorm:"size:20;not null;default:'BE'" json:"degreeName"`
	AvatarURL  string `gorm:"size:512;not null;default:''" json:"avatarUrl"`
	AvatarKey  string `gorm:"size:255;not null;default:''" json:"-"`
	Role       Role   `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	IsVerified bool   `gorm:"not null;default:false" json:"isVerified"`

	// RefreshToken holds the single active refresh token; nil after logout.
	RefreshToken         *string    `gorm:"type:text" json:"-"`
	ForgotPasswordToken  *string    `gorm:"size:64;index" json:"-"`
	ForgotPasswordExpiry *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the gorm table name.
func (User) TableName() string {
	return "users"
}

// BeforeSave hashes the password unless it already is a bcrypt hash and defaults the role.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if len(u.Password) > 0 && !isBcryptHash(u.Password) {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] failed to hash password for email=%s: %v", u.Email, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// HasRefreshToken reports whether token equals the stored refresh token.
func (u *User) HasRefreshToken(token string) bool {
	if u.RefreshToken == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.RefreshToken), []byte(token)) == 1
}

// Can reports whether the user's role grants capability c.
func (u *User) Can(c Capability) bool {
	return u.Role.Can(c)
}

// ValidHostel reports whether name is a known hostel.
func ValidHostel(name string) bool {
	return contains(Hostels, name)
}

// ValidDegree reports whether name is a known degree.
func ValidDegree(name string) bool {
	return contains(Degrees, name)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
