package model

import (
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"gorm.io/datatypes"
)

// OTPCode stores the keyed hash of a one-time code, never the code itself.
type OTPCode struct {
	ID         uint                 `gorm:"primaryKey" json:"id"`
	UserID     *uint                `gorm:"column:user_id;index" json:"user_id,omitempty"`
	AccountID  *uint                `gorm:"column:account_id" json:"account_id,omitempty"`
	Purpose    constants.OTPPurpose `gorm:"column:purpose;type:varchar(32);not null" json:"purpose"`
	Channel    string               `gorm:"column:channel;type:varchar(16);not null" json:"channel"`
	Target     string               `gorm:"column:target;not null" json:"target"`
	CodeHash   string               `gorm:"column:code_hash;not null" json:"-"`
	Status     string               `gorm:"column:status;type:varchar(16);not null;default:pending" json:"status"`
	Attempts   int                  `gorm:"column:attempts;not null;default:0" json:"attempts"`
	ExpiresAt  time.Time            `gorm:"column:expires_at;not null" json:"expires_at"`
	ConsumedAt *time.Time           `gorm:"column:consumed_at" json:"consumed_at,omitempty"`
	Metadata   datatypes.JSON       `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func (OTPCode) TableName() string {
	return "otp_codes"
}

// Expired reports whether the code is past its expiry at now.
func (o *OTPCode) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
