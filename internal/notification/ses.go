package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the subset of the SES v2 client used by SESMailer.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends email through Amazon SES.
type SESMailer struct {
	client SESAPI
	from   string
}

func NewSESMailer(client SESAPI, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

func (m *SESMailer) SendMail(ctx context.Context, mail Mail) (string, error) {
	start := time.Now()

	if mail.To == "" {
		return "", errors.New("mail recipient is required")
	}

	body := &types.Body{}
	if mail.HTML != "" {
		body.Html = &types.Content{Data: aws.String(mail.HTML), Charset: aws.String("UTF-8")}
	}
	if mail.Text != "" {
		body.Text = &types.Content{Data: aws.String(mail.Text), Charset: aws.String("UTF-8")}
	}

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{mail.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(mail.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "SES send failed").
			Secret("to", mail.To).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return "", fmt.Errorf("ses send email: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	logger.DebugWithContext(ctx, "SES email accepted").
		String("message_id", messageID).
		Duration(time.Since(start)).
		Log()

	return messageID, nil
}
