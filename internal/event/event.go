package event

import (
	"context"
	"time"
)

// Event types published on the auth stream.
const (
	TypeRegistered         = "user.registered"
	TypeLoginSucceeded     = "auth.login_succeeded"
	TypeLoginFailed        = "auth.login_failed"
	TypeLogout             = "auth.logout"
	TypeOTPRequested       = "otp.requested"
	TypePasswordReset      = "auth.password_reset"
	TypeContactUpdated     = "user.contact_updated"
	TypeTwoFactorVerified  = "auth.2fa_verified"
	TypeAccountSuspended   = "account.suspended"
	TypeAccountUnsuspended = "account.unsuspended"
)

// Event is a security-relevant fact about an identity.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     uint              `json:"user_id,omitempty"`
	AccountID  uint              `json:"account_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher emits auth events. Implementations must not block callers on
// broker failures for longer than their write timeout.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
