package dto

import "time"

type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required,min=2,max=50"`
	LastName  string `json:"last_name" binding:"required,min=2,max=50"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Phone     string `json:"phone" binding:"omitempty,e164"`
	Password  string `json:"password" binding:"required,min=8,max=100,strong_password"`
}

type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	AccountID  *uint  `json:"account_id" binding:"omitempty,gt=0"`
	RememberMe bool   `json:"remember_me"`
}

type TwoFactorValidateRequest struct {
	Code string `json:"code" binding:"required,numeric,min=4,max=10"`
}

// RefreshRequest is optional for cookie clients; bearer clients send both
// fields from their last AuthResponse.
type RefreshRequest struct {
	SessionID    string `json:"session_id"`
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest needs exactly one of Email or Phone.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required_without=Phone,omitempty,email"`
	Phone string `json:"phone" binding:"required_without=Email,omitempty,e164"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" binding:"required_without=Phone,omitempty,email"`
	Phone    string `json:"phone" binding:"required_without=Email,omitempty,e164"`
	Code     string `json:"code" binding:"required,numeric,min=4,max=10"`
	Password string `json:"password" binding:"required,min=8,max=100,strong_password"`
}

type VerificationRequest struct {
	Channel string `json:"channel" binding:"required,oneof=email sms"`
}

type VerificationConfirmRequest struct {
	Channel string `json:"channel" binding:"required,oneof=email sms"`
	Code    string `json:"code" binding:"required,numeric,min=4,max=10"`
}

// ContactCodeRequest asks for a code sent to a new address.
type ContactCodeRequest struct {
	Email string `json:"email" binding:"required_without=Phone,omitempty,email"`
	Phone string `json:"phone" binding:"required_without=Email,omitempty,e164"`
}

type UpdateContactRequest struct {
	Email string `json:"email" binding:"required_without=Phone,omitempty,email"`
	Phone string `json:"phone" binding:"required_without=Email,omitempty,e164"`
	Code  string `json:"code" binding:"required,numeric,min=4,max=10"`
}

type CodeSentResponse struct {
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionResponse struct {
	State             string          `json:"state"`
	IdentityState     string          `json:"identity_state"`
	TwoFactorRequired bool            `json:"two_factor_required"`
	ExpiresAt         time.Time       `json:"expires_at"`
	User              UserResponse    `json:"user"`
	Account           AccountResponse `json:"account"`
	Permissions       []string        `json:"permissions"`
}

type AuthResponse struct {
	SessionID         string          `json:"session_id"`
	AccessToken       string          `json:"access_token"`
	RefreshToken      string          `json:"refresh_token"`
	ExpiresAt         time.Time       `json:"expires_at"`
	TwoFactorRequired bool            `json:"two_factor_required"`
	TwoFactorChannel  string          `json:"two_factor_channel,omitempty"`
	User              UserResponse    `json:"user"`
	Account           AccountResponse `json:"account"`
}
