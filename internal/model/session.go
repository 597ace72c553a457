package model

import "time"

// Session is the record kept in the key-value store under session:<id>.
type Session struct {
	ID               string    `json:"id"`
	AccountID        uint      `json:"account_id"`
	UserID           uint      `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	IP               string    `json:"ip,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	RememberMe       bool      `json:"remember_me"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"`
	CSRFTokenHash    string    `json:"csrf_token_hash,omitempty"`
}

// SessionMetadata is what the caller knows about the device at creation.
type SessionMetadata struct {
	UserID           uint
	IP               string
	UserAgent        string
	RememberMe       bool
	RefreshTokenHash string
	CSRFTokenHash    string
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
