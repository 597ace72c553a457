package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = context.WithValue(ctx, ctxutil.FunctionKey, "GetByID")
	ctx = context.WithValue(ctx, ctxutil.ModuleKey, "repository")

	logger.DebugWithContext(ctx, "Getting user by ID").
		Uint("user_id", id).
		Log()

	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.DebugWithContext(ctx, "Failed to get user by ID").
			Uint("user_id", id).
			Duration(duration).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	logger.DebugWithContext(ctx, "User retrieved successfully").
		Uint("user_id", id).
		Duration(duration).
		Log()

	return &user, nil
}

// GetByEmail finds user by lower-cased email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx = context.WithValue(ctx, ctxutil.FunctionKey, "GetByEmail")
	ctx = context.WithValue(ctx, ctxutil.ModuleKey, "repository")

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("email = ?", email).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.DebugWithContext(ctx, "User not found by email").
			Duration(duration).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	logger.DebugWithContext(ctx, "User retrieved successfully by email").
		Uint("user_id", user.ID).
		Duration(duration).
		Log()

	return &user, nil
}

// GetByPhone finds user by E.164 phone number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	ctx = context.WithValue(ctx, ctxutil.FunctionKey, "GetByPhone")
	ctx = context.WithValue(ctx, ctxutil.ModuleKey, "repository")

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user)
	if result.Error != nil {
		logger.DebugWithContext(ctx, "User not found by phone").
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &user, nil
}

// CreateWithAccount inserts the user and its default account in one transaction.
func (r *UserRepository) CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) error {
	ctx = context.WithValue(ctx, ctxutil.FunctionKey, "CreateWithAccount")
	ctx = context.WithValue(ctx, ctxutil.ModuleKey, "repository")

	logger.DebugWithContext(ctx, "Creating new user").
		String("first_name", user.FirstName).
		String("last_name", user.LastName).
		Log()

	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		account.UserID = user.ID
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			Duration(duration).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "User created successfully").
		Uint("user_id", user.ID).
		Uint("account_id", account.ID).
		Duration(duration).
		Log()

	return nil
}

// UpdateProfile updates names only
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, firstName, lastName string) error {
	return r.update(ctx, "UpdateProfile", id, map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	return r.update(ctx, "UpdatePassword", id, map[string]interface{}{
		"password_hash": passwordHash,
	})
}

// SetEmail replaces the email and records it as verified at verifiedAt.
func (r *UserRepository) SetEmail(ctx context.Context, id uint, email string, verifiedAt time.Time) error {
	return r.update(ctx, "SetEmail", id, map[string]interface{}{
		"email":             email,
		"email_verified_at": verifiedAt,
	})
}

// SetPhone replaces the phone and records it as verified at verifiedAt.
func (r *UserRepository) SetPhone(ctx context.Context, id uint, phone string, verifiedAt time.Time) error {
	return r.update(ctx, "SetPhone", id, map[string]interface{}{
		"phone":             phone,
		"phone_verified_at": verifiedAt,
	})
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uint, at time.Time) error {
	return r.update(ctx, "MarkEmailVerified", id, map[string]interface{}{
		"email_verified_at": at,
	})
}

func (r *UserRepository) MarkPhoneVerified(ctx context.Context, id uint, at time.Time) error {
	return r.update(ctx, "MarkPhoneVerified", id, map[string]interface{}{
		"phone_verified_at": at,
	})
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.update(ctx, "TouchLastLogin", id, map[string]interface{}{
		"last_login_at": at,
	})
}

func (r *UserRepository) update(ctx context.Context, function string, id uint, fields map[string]interface{}) error {
	ctx = context.WithValue(ctx, ctxutil.FunctionKey, function)
	ctx = context.WithValue(ctx, ctxutil.ModuleKey, "repository")

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update user").
			Uint("user_id", id).
			Duration(duration).
			Err(result.Error).
			Log()
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.DebugWithContext(ctx, "User updated successfully").
		Uint("user_id", id).
		Int64("rows_affected", result.RowsAffected).
		Duration(duration).
		Log()

	return nil
}
