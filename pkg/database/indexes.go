package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Indexes that gorm tags cannot express. Each statement is idempotent.
var indexStatements = []string{
	// Lookup of the live code for a purpose and subject.
	`CREATE INDEX IF NOT EXISTS idx_otp_codes_pending_account ON otp_codes (account_id, purpose, created_at DESC) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_otp_codes_pending_target ON otp_codes (target, purpose, created_at DESC) WHERE status = 'pending'`,

	// One default account per user.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_default_per_user ON accounts (user_id) WHERE is_default AND deleted_at IS NULL`,

	// Case-insensitive email lookups.
	`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`,
}

func CreateIndexes(ctx context.Context, db *gorm.DB) error {
	for _, stmt := range indexStatements {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
