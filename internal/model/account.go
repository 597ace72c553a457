package model

import (
	"encoding/json"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Account struct {
	gorm.Model
	UserID           uint       `gorm:"column:user_id;not null;index" json:"user_id"`
	Name             string     `gorm:"column:name;not null" json:"name"`
	Kind             string     `gorm:"column:kind;not null;default:personal" json:"kind"`
	IsDefault        bool       `gorm:"column:is_default;default:false;not null" json:"is_default"`
	RoleID           *uint      `gorm:"column:role_id;index" json:"role_id,omitempty"`
	Role             *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsSuspended      bool       `gorm:"column:is_suspended;default:false;not null" json:"is_suspended"`
	SuspendedAt      *time.Time `gorm:"column:suspended_at" json:"suspended_at,omitempty"`
	SuspendReason    string     `gorm:"column:suspend_reason" json:"suspend_reason,omitempty"`
	TwoFactorEnabled bool       `gorm:"column:two_factor_enabled;default:false;not null" json:"two_factor_enabled"`
	TwoFactorMethod  string     `gorm:"column:two_factor_method" json:"two_factor_method,omitempty"`
}

// Permissions returns the permissions granted through the account's role.
func (a *Account) Permissions() []string {
	if a.Role == nil {
		return nil
	}
	return a.Role.PermissionList()
}

type Role struct {
	gorm.Model
	Name        string         `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	Permissions datatypes.JSON `gorm:"column:permissions;type:jsonb" json:"permissions"`
}

// PermissionList decodes the JSON permission array. Malformed data grants nothing.
func (r *Role) PermissionList() []string {
	if len(r.Permissions) == 0 {
		return nil
	}
	var perms []string
	if err := json.Unmarshal(r.Permissions, &perms); err != nil {
		return nil
	}
	return perms
}

// SetPermissions encodes perms into the JSON column.
func (r *Role) SetPermissions(perms []string) error {
	if perms == nil {
		perms = []string{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	r.Permissions = datatypes.JSON(raw)
	return nil
}

// HasPermission reports whether perms grants p. "*" grants everything.
func HasPermission(perms []string, p string) bool {
	if p == "" {
		return true
	}
	for _, granted := range perms {
		if granted == constants.PermissionAll || granted == p {
			return true
		}
	}
	return false
}
