package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
)

// Dispatcher routes one-time codes to the mail or SMS provider.
type Dispatcher struct {
	mailer    Mailer
	sms       SMSSender
	templates *Templates
	timeout   time.Duration
}

func NewDispatcher(mailer Mailer, sms SMSSender, templates *Templates, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		mailer:    mailer,
		sms:       sms,
		templates: templates,
		timeout:   timeout,
	}
}

// SendCode delivers msg once. Failures are returned, never retried.
func (d *Dispatcher) SendCode(ctx context.Context, msg CodeMessage) (string, error) {
	ctx = ctxutil.WithFunction(ctx, "notification", "SendCode")

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		id  string
		err error
	)

	switch msg.Channel {
	case constants.ChannelEmail:
		var mail Mail
		mail, err = d.templates.CodeMail(msg)
		if err != nil {
			return "", err
		}
		id, err = d.mailer.SendMail(ctx, mail)
	case constants.ChannelSMS:
		id, err = d.sms.SendOTPSMS(ctx, msg.To, msg.Code)
	default:
		return "", fmt.Errorf("unsupported channel %q", msg.Channel)
	}

	if err != nil {
		logger.WarnWithContext(ctx, "Code dispatch failed").
			String("channel", msg.Channel).
			String("purpose", string(msg.Purpose)).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return "", err
	}

	logger.InfoWithContext(ctx, "Code dispatched").
		String("channel", msg.Channel).
		String("purpose", string(msg.Purpose)).
		String("message_id", id).
		Duration(time.Since(start)).
		Log()

	return id, nil
}
