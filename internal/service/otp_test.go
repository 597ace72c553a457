package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/notification"
	"github.com/Payphone-Digital/marketplace-auth/internal/repository"
	pkgredis "github.com/Payphone-Digital/marketplace-auth/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyThrottle struct {
	cooldown bool
	quota    bool
	released int
}

func (d *denyThrottle) AcquireCooldown(context.Context, constants.OTPPurpose, string, time.Duration) (bool, error) {
	return !d.cooldown, nil
}

func (d *denyThrottle) ReleaseCooldown(context.Context, constants.OTPPurpose, string) error {
	d.released++
	return nil
}

func (d *denyThrottle) ConsumeQuota(context.Context, constants.OTPPurpose, string, int, time.Duration) (bool, error) {
	return !d.quota, nil
}

func newOTP(t *testing.T) (*OTPService, *memCodes, *captureSender, *time.Time) {
	t.Helper()
	codes := &memCodes{}
	sender := &captureSender{}
	svc := NewOTPService(codes, openThrottle{}, sender, testOTPConfig)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, codes, sender, &now
}

func TestOTPService_RequestCode_ContactMissing(t *testing.T) {
	svc, _, sender, _ := newOTP(t)
	accountID := uint(1)

	tests := []struct {
		name    string
		target  CodeTarget
		purpose constants.OTPPurpose
	}{
		{"no address at all", CodeTarget{}, constants.OTPPasswordReset},
		{"phone purpose with email only", CodeTarget{Email: "a@example.com"}, constants.OTPPhoneVerification},
		{"email purpose with phone only", CodeTarget{Phone: "+15550001111"}, constants.OTPTwoFactorEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestCode(context.Background(), CodeRequest{Target: tt.target, Purpose: tt.purpose, AccountID: &accountID})
			assert.ErrorIs(t, err, apperrors.ErrContactMissing)
		})
	}
	assert.Zero(t, sender.count())
}

func TestOTPService_RequestCode_CooldownPerPurpose(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sender := &captureSender{}
	svc := NewOTPService(&memCodes{}, repository.NewRateLimitStore(pkgredis.NewFromRedis(rdb)), sender, testOTPConfig)
	ctx := context.Background()
	accountID := uint(3)
	target := CodeTarget{Email: "ada@example.com"}

	_, err := svc.RequestCode(ctx, CodeRequest{Target: target, Purpose: constants.OTPEmailVerification, AccountID: &accountID})
	require.NoError(t, err)

	// a login code right after registration still goes out
	issued, err := svc.RequestCode(ctx, CodeRequest{Target: target, Purpose: constants.OTPTwoFactorEmail, AccountID: &accountID})
	require.NoError(t, err)
	assert.Equal(t, constants.ChannelEmail, issued.Channel)
	assert.Equal(t, 2, sender.count())

	_, err = svc.RequestCode(ctx, CodeRequest{Target: target, Purpose: constants.OTPEmailVerification, AccountID: &accountID})
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	_, err = svc.RequestCode(ctx, CodeRequest{Target: target, Purpose: constants.OTPTwoFactorEmail, AccountID: &accountID})
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Equal(t, 2, sender.count())
}

func TestOTPService_RequestCode_RateLimited(t *testing.T) {
	for _, throttle := range []*denyThrottle{{cooldown: true}, {quota: true}} {
		codes := &memCodes{}
		sender := &captureSender{}
		svc := NewOTPService(codes, throttle, sender, testOTPConfig)

		_, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Email: "a@example.com"}, Purpose: constants.OTPPasswordReset})
		assert.ErrorIs(t, err, apperrors.ErrRateLimited)
		assert.Empty(t, codes.codes)
		assert.Zero(t, sender.count())
	}
}

func TestOTPService_RequestCode_StoresHashOnly(t *testing.T) {
	svc, codes, sender, now := newOTP(t)

	issued, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Email: " User@Example.com "}, Purpose: constants.OTPPasswordReset})
	require.NoError(t, err)
	assert.Equal(t, constants.ChannelEmail, issued.Channel)
	assert.Equal(t, now.Add(10*time.Minute), issued.ExpiresAt)

	msg := sender.last(t)
	assert.Equal(t, "user@example.com", msg.To)
	assert.Len(t, msg.Code, 6)

	require.Len(t, codes.codes, 1)
	stored := codes.codes[0]
	assert.Equal(t, "user@example.com", stored.Target)
	assert.NotContains(t, stored.CodeHash, msg.Code)
	assert.Equal(t, constants.OTPStatusPending, stored.Status)
}

func TestOTPService_ValidatesAtMostOnce(t *testing.T) {
	svc, _, sender, _ := newOTP(t)
	accountID := uint(7)

	_, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Email: "a@example.com"}, Purpose: constants.OTPTwoFactorEmail, AccountID: &accountID})
	require.NoError(t, err)
	code := sender.last(t).Code

	require.NoError(t, svc.ValidateCode(context.Background(), accountID, code, constants.OTPTwoFactorEmail))
	assert.ErrorIs(t, svc.ValidateCode(context.Background(), accountID, code, constants.OTPTwoFactorEmail), apperrors.ErrCodeInvalid)
}

func TestOTPService_ReissueSupersedesPrevious(t *testing.T) {
	svc, codes, sender, _ := newOTP(t)
	accountID := uint(7)
	req := CodeRequest{Target: CodeTarget{Email: "a@example.com"}, Purpose: constants.OTPEmailVerification, AccountID: &accountID}

	_, err := svc.RequestCode(context.Background(), req)
	require.NoError(t, err)
	first := sender.last(t).Code

	_, err = svc.RequestCode(context.Background(), req)
	require.NoError(t, err)
	second := sender.last(t).Code

	assert.Equal(t, constants.OTPStatusSuperseded, codes.status(1))
	if first != second {
		assert.ErrorIs(t, svc.ValidateCode(context.Background(), accountID, first, req.Purpose), apperrors.ErrCodeInvalid)
	}
	assert.NoError(t, svc.ValidateCode(context.Background(), accountID, second, req.Purpose))
}

func TestOTPService_Expiry(t *testing.T) {
	svc, codes, sender, now := newOTP(t)
	accountID := uint(3)

	_, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Phone: "+15550001111"}, Purpose: constants.OTPPhoneVerification, AccountID: &accountID})
	require.NoError(t, err)
	code := sender.last(t).Code

	*now = now.Add(10 * time.Minute)
	err = svc.ValidateCode(context.Background(), accountID, code, constants.OTPPhoneVerification)
	assert.ErrorIs(t, err, apperrors.ErrCodeExpired)
	assert.Equal(t, constants.OTPStatusExpired, codes.status(1))
}

func TestOTPService_LocksAfterMaxAttempts(t *testing.T) {
	svc, codes, sender, _ := newOTP(t)
	accountID := uint(3)

	_, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Email: "a@example.com"}, Purpose: constants.OTPEmailVerification, AccountID: &accountID})
	require.NoError(t, err)
	code := sender.last(t).Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < testOTPConfig.MaxAttempts; i++ {
		err := svc.ValidateCode(context.Background(), accountID, wrong, constants.OTPEmailVerification)
		assert.ErrorIs(t, err, apperrors.ErrCodeInvalid)
	}

	assert.Equal(t, constants.OTPStatusLocked, codes.status(1))
	assert.ErrorIs(t, svc.ValidateCode(context.Background(), accountID, code, constants.OTPEmailVerification), apperrors.ErrCodeInvalid)
}

func TestOTPService_ValidateAccountCodeChecksAddress(t *testing.T) {
	svc, _, sender, _ := newOTP(t)
	accountID := uint(3)

	_, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Email: "new@example.com"}, Purpose: constants.OTPEmailVerification, AccountID: &accountID})
	require.NoError(t, err)
	code := sender.last(t).Code

	err = svc.ValidateAccountCode(context.Background(), accountID, "other@example.com", code, constants.OTPEmailVerification)
	assert.ErrorIs(t, err, apperrors.ErrCodeInvalid)

	assert.NoError(t, svc.ValidateAccountCode(context.Background(), accountID, "NEW@example.com", code, constants.OTPEmailVerification))
}

func TestOTPService_DispatchFailure(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
		want    *apperrors.DomainError
	}{
		{"provider error", errors.New("smtp exploded"), apperrors.ErrInternal},
		{"circuit open", fmt.Errorf("mailer: %w", notification.ErrUnavailable), apperrors.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := &memCodes{}
			throttle := &denyThrottle{}
			svc := NewOTPService(codes, throttle, &captureSender{err: tt.sendErr}, testOTPConfig)

			_, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Email: "a@example.com"}, Purpose: constants.OTPPasswordReset})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, constants.OTPStatusSuperseded, codes.status(1))
			assert.Equal(t, 1, throttle.released)
		})
	}
}

func TestOTPService_TargetCodeIgnoresAccountCodes(t *testing.T) {
	svc, _, sender, _ := newOTP(t)
	accountID := uint(3)

	_, err := svc.RequestCode(context.Background(), CodeRequest{Target: CodeTarget{Email: "a@example.com"}, Purpose: constants.OTPPasswordReset, AccountID: &accountID})
	require.NoError(t, err)

	err = svc.ValidateTargetCode(context.Background(), CodeTarget{Email: "a@example.com"}, sender.last(t).Code, constants.OTPPasswordReset)
	assert.ErrorIs(t, err, apperrors.ErrCodeInvalid)
}
