package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"gorm.io/gorm"
)

// CodeLookup selects the pending code for a purpose. AccountID wins over
// Target when both are set.
type CodeLookup struct {
	Purpose   constants.OTPPurpose
	AccountID *uint
	Target    string
}

type OTPRepository struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

func (r *OTPRepository) scope(tx *gorm.DB, lookup CodeLookup) *gorm.DB {
	tx = tx.Where("purpose = ? AND status = ?", lookup.Purpose, constants.OTPStatusPending)
	if lookup.AccountID != nil {
		return tx.Where("account_id = ?", *lookup.AccountID)
	}
	return tx.Where("target = ? AND account_id IS NULL", lookup.Target)
}

// Issue stores code and marks every other pending code of the same purpose
// and subject superseded, atomically.
func (r *OTPRepository) Issue(ctx context.Context, code *model.OTPCode) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "IssueOTP")

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	var superseded int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookup := CodeLookup{Purpose: code.Purpose, AccountID: code.AccountID, Target: code.Target}
		result := r.scope(tx.Model(&model.OTPCode{}), lookup).
			Update("status", constants.OTPStatusSuperseded)
		if result.Error != nil {
			return result.Error
		}
		superseded = result.RowsAffected

		return tx.Create(code).Error
	})
	duration := time.Since(start)

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue one-time code").
			String("purpose", string(code.Purpose)).
			Duration(duration).
			Err(err).
			Log()
		return err
	}

	logger.DebugWithContext(ctx, "One-time code stored").
		Uint("otp_id", code.ID).
		String("purpose", string(code.Purpose)).
		Int64("superseded", superseded).
		Duration(duration).
		Log()

	return nil
}

// FindPending returns the newest pending code for lookup.
func (r *OTPRepository) FindPending(ctx context.Context, lookup CodeLookup) (*model.OTPCode, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "FindPendingOTP")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var code model.OTPCode
	err := r.scope(r.db.WithContext(ctx), lookup).
		Order("id DESC").
		First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// RecordFailedAttempt bumps the attempt counter and locks the code once it
// reaches maxAttempts.
func (r *OTPRepository) RecordFailedAttempt(ctx context.Context, id uint, maxAttempts int) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "RecordFailedAttempt")

	result := r.db.WithContext(ctx).
		Model(&model.OTPCode{}).
		Where("id = ? AND status = ?", id, constants.OTPStatusPending).
		Updates(map[string]interface{}{
			"attempts": gorm.Expr("attempts + 1"),
			"status":   gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END", maxAttempts, constants.OTPStatusLocked),
		})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to record OTP attempt").
			Uint("otp_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}
	return nil
}

// Transition moves a code from one status to another only if it is still in
// from. It reports whether this call won the transition.
func (r *OTPRepository) Transition(ctx context.Context, id uint, from, to string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "TransitionOTP")

	result := r.db.WithContext(ctx).
		Model(&model.OTPCode{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to transition OTP").
			Uint("otp_id", id).
			String("from", from).
			String("to", to).
			Err(result.Error).
			Log()
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Consume marks a pending code used. Only one concurrent caller gets true.
func (r *OTPRepository) Consume(ctx context.Context, id uint, at time.Time) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ConsumeOTP")

	result := r.db.WithContext(ctx).
		Model(&model.OTPCode{}).
		Where("id = ? AND status = ?", id, constants.OTPStatusPending).
		Updates(map[string]interface{}{
			"status":      constants.OTPStatusUsed,
			"consumed_at": at,
		})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to consume OTP").
			Uint("otp_id", id).
			Err(result.Error).
			Log()
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
