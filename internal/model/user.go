package model

import (
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName       string     `gorm:"column:first_name;not null" json:"first_name"`
	LastName        string     `gorm:"column:last_name;not null" json:"last_name"`
	Email           string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Phone           *string    `gorm:"column:phone;uniqueIndex:idx_users_phone,where:phone IS NOT NULL" json:"phone,omitempty"`
	EmailVerifiedAt *time.Time `gorm:"column:email_verified_at" json:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time `gorm:"column:phone_verified_at" json:"phone_verified_at,omitempty"`
	PasswordHash    string     `gorm:"column:password_hash;not null" json:"-"`
	IsActive        bool       `gorm:"column:is_active;default:true;not null" json:"is_active"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`

	Accounts []Account `gorm:"foreignKey:UserID" json:"-"`
}

// PhoneNumber returns the phone or an empty string.
func (u *User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

func (u *User) PhoneVerified() bool {
	return u.PhoneVerifiedAt != nil
}

// VerificationState reports REGISTERED_VERIFIED once any contact address has
// been confirmed.
func (u *User) VerificationState() string {
	if u.EmailVerified() || u.PhoneVerified() {
		return constants.IdentityRegisteredVerified
	}
	return constants.IdentityRegisteredUnverified
}
