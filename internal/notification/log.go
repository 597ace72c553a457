package notification

import (
	"context"

	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/google/uuid"
)

// LogMailer writes mail to the log instead of sending it. Used when no
// provider is configured.
type LogMailer struct{}

func (LogMailer) SendMail(ctx context.Context, mail Mail) (string, error) {
	id := "log-" + uuid.NewString()
	logger.InfoWithContext(ctx, "Mail delivery skipped, logged instead").
		String("message_id", id).
		String("to", mail.To).
		String("subject", mail.Subject).
		String("body", mail.Text).
		Log()
	return id, nil
}

// LogSMSSender writes text messages to the log.
type LogSMSSender struct{}

func (LogSMSSender) SendOTPSMS(ctx context.Context, number, otp string) (string, error) {
	id := "log-" + uuid.NewString()
	logger.InfoWithContext(ctx, "SMS delivery skipped, logged instead").
		String("message_id", id).
		String("to", number).
		String("otp", otp).
		Log()
	return id, nil
}
