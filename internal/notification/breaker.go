package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/Payphone-Digital/marketplace-auth/pkg/circuit"
)

func guard(ctx context.Context, b *circuit.Breaker, fn func(ctx context.Context) (string, error)) (string, error) {
	var id string
	err := b.Execute(ctx, func(ctx context.Context) error {
		var err error
		id, err = fn(ctx)
		return err
	})
	if errors.Is(err, circuit.ErrCircuitOpen) || errors.Is(err, circuit.ErrTooManyRequests) {
		return "", fmt.Errorf("%s: %w", b.Name(), ErrUnavailable)
	}
	return id, err
}

// BreakerMailer short-circuits a failing mail provider.
type BreakerMailer struct {
	next    Mailer
	breaker *circuit.Breaker
}

func NewBreakerMailer(next Mailer, breaker *circuit.Breaker) *BreakerMailer {
	return &BreakerMailer{next: next, breaker: breaker}
}

func (m *BreakerMailer) SendMail(ctx context.Context, mail Mail) (string, error) {
	return guard(ctx, m.breaker, func(ctx context.Context) (string, error) {
		return m.next.SendMail(ctx, mail)
	})
}

// BreakerSMSSender short-circuits a failing SMS provider.
type BreakerSMSSender struct {
	next    SMSSender
	breaker *circuit.Breaker
}

func NewBreakerSMSSender(next SMSSender, breaker *circuit.Breaker) *BreakerSMSSender {
	return &BreakerSMSSender{next: next, breaker: breaker}
}

func (s *BreakerSMSSender) SendOTPSMS(ctx context.Context, number, otp string) (string, error) {
	return guard(ctx, s.breaker, func(ctx context.Context) (string, error) {
		return s.next.SendOTPSMS(ctx, number, otp)
	})
}
