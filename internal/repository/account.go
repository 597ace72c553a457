package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByID loads the account without its role; permissions are resolved
// separately through the role cache.
func (r *AccountRepository) GetByID(ctx context.Context, id uint) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "AccountGetByID")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var account model.Account
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&account)
	if result.Error != nil {
		logger.DebugWithContext(ctx, "Account lookup failed").
			Uint("account_id", id).
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &account, nil
}

// GetDefaultForUser returns the user's default account, falling back to the oldest one.
func (r *AccountRepository) GetDefaultForUser(ctx context.Context, userID uint) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "GetDefaultForUser")

	var account model.Account
	result := r.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("id ASC").
		First(&account)
	if result.Error != nil {
		logger.DebugWithContext(ctx, "Default account lookup failed").
			Uint("user_id", userID).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &account, nil
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID uint) ([]model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ListByUser")

	start := time.Now()
	var accounts []model.Account
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&accounts).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to list accounts").
			Uint("user_id", userID).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, err
	}

	return accounts, nil
}

// SetSuspended flips the suspension flag. at is ignored when lifting a suspension.
func (r *AccountRepository) SetSuspended(ctx context.Context, id uint, suspended bool, reason string, at time.Time) error {
	fields := map[string]interface{}{
		"is_suspended":   suspended,
		"suspend_reason": reason,
		"suspended_at":   nil,
	}
	if suspended {
		fields["suspended_at"] = at
	}
	return r.update(ctx, "SetSuspended", id, fields)
}

func (r *AccountRepository) SetTwoFactor(ctx context.Context, id uint, enabled bool, method string) error {
	return r.update(ctx, "SetTwoFactor", id, map[string]interface{}{
		"two_factor_enabled": enabled,
		"two_factor_method":  method,
	})
}

func (r *AccountRepository) update(ctx context.Context, function string, id uint, fields map[string]interface{}) error {
	ctx = ctxutil.WithFunction(ctx, "repository", function)

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update account").
			Uint("account_id", id).
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "Account updated").
		Uint("account_id", id).
		Duration(time.Since(start)).
		Log()

	return nil
}
