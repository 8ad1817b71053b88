package models

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost matches the work factor used when accounts were first issued.
const PasswordCost = 10

var (
	ErrNoOTP       = errors.New("no otp issued")
	ErrOTPExpired  = errors.New("otp expired")
	ErrOTPMismatch = errors.New("otp mismatch")
)

// User represents a registered student account
type User struct {
	Base

	FullName   string `gorm:"not null;index" json:"fullName"`
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	USN        string `gorm:"column:usn;uniqueIndex;not null" json:"usn"`
	Semester   string `gorm:"not null" json:"semester"`
	Department string `gorm:"not null" json:"department"`

	// Authentication fields
	PasswordHash         string     `gorm:"not null" json:"-"`
	IsEmailVerified      bool       `gorm:"default:false" json:"isEmailVerified"`
	EmailVerificationOTP string     `json:"-"`
	OTPExpiry            *time.Time `json:"-"`
	PasswordResetOTP     string     `json:"-"`
	PasswordResetExpiry  *time.Time `json:"-"`
	RefreshToken         string     `json:"-"`

	IsActive bool `gorm:"default:true" json:"isActive"`
}

// UserSummary is the projection embedded in events and gallery listings.
type UserSummary struct {
	ID       uint   `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUSN upper-cases and trims a university serial number.
func NormalizeUSN(usn string) string {
	return strings.ToUpper(strings.TrimSpace(usn))
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) IsPasswordCorrect(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SetVerificationOTP stores a fresh email verification code.
func (u *User) SetVerificationOTP(code string, expiresAt time.Time) {
	u.EmailVerificationOTP = code
	u.OTPExpiry = &expiresAt
}

// CheckVerificationOTP compares code against the stored verification code.
func (u *User) CheckVerificationOTP(code string, now time.Time) error {
	return checkOTP(u.EmailVerificationOTP, u.OTPExpiry, code, now)
}

// MarkEmailVerified flips the verification flag and clears the spent code.
func (u *User) MarkEmailVerified() {
	u.IsEmailVerified = true
	u.EmailVerificationOTP = ""
	u.OTPExpiry = nil
}

func (u *User) SetPasswordResetOTP(code string, expiresAt time.Time) {
	u.PasswordResetOTP = code
	u.PasswordResetExpiry = &expiresAt
}

func (u *User) CheckPasswordResetOTP(code string, now time.Time) error {
	return checkOTP(u.PasswordResetOTP, u.PasswordResetExpiry, code, now)
}

func (u *User) ClearPasswordResetOTP() {
	u.PasswordResetOTP = ""
	u.PasswordResetExpiry = nil
}

// Summary returns the public projection of the user.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, FullName: u.FullName, Email: u.Email}
}

// Stored code is checked first, then expiry, then the exact value.
func checkOTP(stored string, expiry *time.Time, code string, now time.Time) error {
	if stored == "" {
		return ErrNoOTP
	}
	if expiry == nil || expiry.Before(now) {
		return ErrOTPExpired
	}
	if stored != code {
		return ErrOTPMismatch
	}
	return nil
}
