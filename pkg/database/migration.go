package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the relational tables and their indexes.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	start := time.Now()

	if err := db.WithContext(ctx).AutoMigrate(
		&model.Role{},
		&model.User{},
		&model.Account{},
		&model.OTPCode{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := CreateIndexes(ctx, db); err != nil {
		return err
	}

	logger.GetLogger().Info("Database migrated", zap.Duration("duration", time.Since(start)))
	return nil
}
