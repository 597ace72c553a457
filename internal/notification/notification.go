package notification

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
)

// ErrUnavailable is returned when a provider is short-circuited.
var ErrUnavailable = errors.New("notification provider unavailable")

// Mail is a rendered email ready for delivery.
type Mail struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers email and returns the provider message id.
type Mailer interface {
	SendMail(ctx context.Context, mail Mail) (string, error)
}

// SMSSender delivers a one-time code by text message.
type SMSSender interface {
	SendOTPSMS(ctx context.Context, number, otp string) (string, error)
}

// CodeMessage describes a one-time code to deliver.
type CodeMessage struct {
	Channel   string
	To        string
	Code      string
	Purpose   constants.OTPPurpose
	ExpiresIn time.Duration
}
