package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultAdmin describes the back-office user created on first start.
type DefaultAdmin struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Seed creates the super_admin role and the admin user with a default account
// holding it. Existing rows are left untouched.
func Seed(ctx context.Context, db *gorm.DB, admin DefaultAdmin, cost int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := seedRole(tx)
		if err != nil {
			return err
		}
		return seedAdmin(tx, admin, role, cost)
	})
}

func seedRole(tx *gorm.DB) (*model.Role, error) {
	var role model.Role
	err := tx.Where("name = ?", constants.RoleSuperAdmin).First(&role).Error
	if err == nil {
		return &role, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup role: %w", err)
	}

	role = model.Role{Name: constants.RoleSuperAdmin, Description: "Unrestricted back-office access"}
	if err := role.SetPermissions([]string{constants.PermissionAll}); err != nil {
		return nil, err
	}
	if err := tx.Create(&role).Error; err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	logger.GetLogger().Info("Seeded role", zap.String("role", role.Name))
	return &role, nil
}

func seedAdmin(tx *gorm.DB, admin DefaultAdmin, role *model.Role, cost int) error {
	var existing model.User
	err := tx.Where("email = ?", admin.Email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(admin.Password), cost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user := model.User{
		FirstName:       admin.FirstName,
		LastName:        admin.LastName,
		Email:           admin.Email,
		PasswordHash:    string(hashed),
		IsActive:        true,
		EmailVerifiedAt: &now,
	}
	if err := tx.Create(&user).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	account := model.Account{
		UserID:    user.ID,
		Name:      admin.FirstName + " " + admin.LastName,
		Kind:      constants.AccountKindStaff,
		IsDefault: true,
		RoleID:    &role.ID,
	}
	if err := tx.Create(&account).Error; err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	logger.GetLogger().Info("Seeded admin user", zap.String("email", admin.Email))
	return nil
}
