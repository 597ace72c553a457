package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	pkgredis "github.com/Payphone-Digital/marketplace-auth/pkg/redis"
)

// RateLimitStore throttles code issuance per purpose and delivery target.
type RateLimitStore struct {
	client *pkgredis.Client
}

func NewRateLimitStore(client *pkgredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

func throttleKey(prefix string, purpose constants.OTPPurpose, target string) string {
	return prefix + string(purpose) + ":" + strings.ToLower(strings.TrimSpace(target))
}

// AcquireCooldown returns false while a previous request for the same
// purpose and target is still cooling down.
func (s *RateLimitStore) AcquireCooldown(ctx context.Context, purpose constants.OTPPurpose, target string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	return s.client.SetNX(ctx, throttleKey(constants.OTPCooldownPrefix, purpose, target), "1", cooldown)
}

// ReleaseCooldown lifts the cooldown, used when a dispatch never happened.
func (s *RateLimitStore) ReleaseCooldown(ctx context.Context, purpose constants.OTPPurpose, target string) error {
	return s.client.Delete(ctx, throttleKey(constants.OTPCooldownPrefix, purpose, target))
}

// ConsumeQuota counts a request against the fixed window and reports whether
// it is still within limit.
func (s *RateLimitStore) ConsumeQuota(ctx context.Context, purpose constants.OTPPurpose, target string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	count, err := s.client.IncrWithExpire(ctx, throttleKey(constants.OTPQuotaPrefix, purpose, target), window)
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}
