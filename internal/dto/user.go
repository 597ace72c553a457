package dto

import "time"

type UpdateProfileRequest struct {
	FirstName string `json:"first_name" binding:"required,min=2,max=50"`
	LastName  string `json:"last_name" binding:"required,min=2,max=50"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100,strong_password,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type EnableTwoFactorRequest struct {
	Method string `json:"method" binding:"required,oneof=email phone"`
}

type ConfirmTwoFactorRequest struct {
	Method string `json:"method" binding:"required,oneof=email phone"`
	Code   string `json:"code" binding:"required,numeric,min=4,max=10"`
}

type UserResponse struct {
	ID            uint       `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	PhoneVerified bool       `json:"phone_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type AccountResponse struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	Kind             string    `json:"kind"`
	IsDefault        bool      `json:"is_default"`
	Role             string    `json:"role,omitempty"`
	IsSuspended      bool      `json:"is_suspended"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TwoFactorMethod  string    `json:"two_factor_method,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type SessionInfo struct {
	ID         string    `json:"id"`
	Current    bool      `json:"current"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RememberMe bool      `json:"remember_me"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
