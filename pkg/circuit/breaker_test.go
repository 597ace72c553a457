package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errProvider = errors.New("provider down")

func newTestBreaker(config Config) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewBreaker("mailer", config, zap.NewNop())
	breaker.now = func() time.Time { return now }
	return breaker, &now
}

func TestNewBreaker(t *testing.T) {
	breaker := NewBreaker("mailer", DefaultConfig(), nil)

	if breaker.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", breaker.State().String())
	}

	if breaker.IsOpen() {
		t.Error("Expected breaker to not be open initially")
	}

	if breaker.Name() != "mailer" {
		t.Errorf("Expected name mailer, got %s", breaker.Name())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	breaker, _ := newTestBreaker(Config{Threshold: 3, Timeout: time.Second, SuccessThreshold: 2, MaxHalfOpen: 2})

	for i := 0; i < 3; i++ {
		breaker.Record(errProvider)
	}

	if breaker.State() != StateOpen {
		t.Fatalf("Expected state OPEN after 3 failures, got %s", breaker.State().String())
	}

	if err := breaker.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	breaker, now := newTestBreaker(Config{Threshold: 2, Timeout: 30 * time.Second, SuccessThreshold: 2, MaxHalfOpen: 2})

	breaker.Record(errProvider)
	breaker.Record(errProvider)

	*now = now.Add(29 * time.Second)
	if err := breaker.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected circuit still open before timeout, got %v", err)
	}

	*now = now.Add(time.Second)
	if err := breaker.Allow(); err != nil {
		t.Fatalf("Expected probe to be allowed after timeout, got %v", err)
	}
	if breaker.State() != StateHalfOpen {
		t.Fatalf("Expected HALF_OPEN, got %s", breaker.State().String())
	}

	if err := breaker.Allow(); err != nil {
		t.Fatalf("Expected second probe allowed, got %v", err)
	}
	if err := breaker.Allow(); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("Expected ErrTooManyRequests, got %v", err)
	}

	breaker.Record(nil)
	breaker.Record(nil)

	if breaker.State() != StateClosed {
		t.Errorf("Expected CLOSED after successes, got %s", breaker.State().String())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	breaker, now := newTestBreaker(Config{Threshold: 1, Timeout: time.Second, SuccessThreshold: 1, MaxHalfOpen: 1})

	breaker.Record(errProvider)
	*now = now.Add(time.Second)
	_ = breaker.Allow()
	breaker.Record(errProvider)

	if breaker.State() != StateOpen {
		t.Errorf("Expected OPEN after half-open failure, got %s", breaker.State().String())
	}
}

func TestBreaker_Execute(t *testing.T) {
	breaker, _ := newTestBreaker(Config{Threshold: 2, Timeout: time.Minute, SuccessThreshold: 1, MaxHalfOpen: 1})
	ctx := context.Background()

	if err := breaker.Execute(ctx, func(context.Context) error { return nil }); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := breaker.Execute(ctx, func(context.Context) error { return errProvider }); !errors.Is(err, errProvider) {
			t.Errorf("Expected provider error, got %v", err)
		}
	}

	called := false
	err := breaker.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected fn not to run while open")
	}
}

func TestBreaker_IsFailureClassifier(t *testing.T) {
	errBadInput := errors.New("invalid phone number")
	breaker, _ := newTestBreaker(Config{
		Threshold:        1,
		Timeout:          time.Minute,
		SuccessThreshold: 1,
		MaxHalfOpen:      1,
		IsFailure: func(err error) bool {
			return !errors.Is(err, errBadInput)
		},
	})

	breaker.Record(errBadInput)
	if breaker.IsOpen() {
		t.Fatal("Expected caller errors not to trip the breaker")
	}

	breaker.Record(errProvider)
	if !breaker.IsOpen() {
		t.Error("Expected provider errors to trip the breaker")
	}
}

func TestBreaker_ContextCancellationIgnored(t *testing.T) {
	breaker, _ := newTestBreaker(Config{Threshold: 1, Timeout: time.Minute, SuccessThreshold: 1, MaxHalfOpen: 1})

	breaker.Record(context.Canceled)
	if breaker.IsOpen() {
		t.Error("Expected cancellation not to count as failure")
	}
}

func TestBreakerRegistry(t *testing.T) {
	registry := NewBreakerRegistry(DefaultConfig(), zap.NewNop())

	mailer := registry.GetOrCreate("mailer")
	if registry.GetOrCreate("mailer") != mailer {
		t.Error("Expected same breaker instance")
	}

	if snaps := registry.Snapshots(); len(snaps) != 1 {
		t.Errorf("Expected only the mailer breaker, got %+v", snaps)
	}

	sms := registry.GetOrCreate("sms")
	snaps := registry.Snapshots()
	if len(snaps) != 2 || snaps[0].Name != "mailer" || snaps[1].Name != "sms" {
		t.Fatalf("Expected sorted snapshots for mailer and sms, got %+v", snaps)
	}

	for i := 0; i < DefaultConfig().Threshold; i++ {
		sms.Record(errProvider)
	}
	if open := registry.Open(); len(open) != 1 || open[0] != "sms" {
		t.Errorf("Expected only sms open, got %v", open)
	}
}
