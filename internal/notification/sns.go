package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used by SNSSender.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes OTP text messages directly to phone numbers.
type SNSSender struct {
	client    SNSAPI
	senderID  string
	templates *Templates
	ttl       time.Duration
}

func NewSNSSender(client SNSAPI, senderID string, templates *Templates, ttl time.Duration) *SNSSender {
	return &SNSSender{
		client:    client,
		senderID:  senderID,
		templates: templates,
		ttl:       ttl,
	}
}

func (s *SNSSender) SendOTPSMS(ctx context.Context, number, otp string) (string, error) {
	start := time.Now()

	message, err := s.templates.CodeSMS(otp, constants.OTPPhoneVerification, s.ttl)
	if err != nil {
		return "", err
	}

	attributes := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(number),
		Message:           aws.String(message),
		MessageAttributes: attributes,
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "SNS publish failed").
			Secret("to", number).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return "", fmt.Errorf("sns publish: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	logger.DebugWithContext(ctx, "SNS message accepted").
		String("message_id", messageID).
		Duration(time.Since(start)).
		Log()

	return messageID, nil
}
