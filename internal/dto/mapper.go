package dto

import (
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
)

func NewUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		Phone:         user.PhoneNumber(),
		EmailVerified: user.EmailVerified(),
		PhoneVerified: user.PhoneVerified(),
		LastLoginAt:   user.LastLoginAt,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func NewAccountResponse(account *model.Account) AccountResponse {
	response := AccountResponse{
		ID:               account.ID,
		Name:             account.Name,
		Kind:             account.Kind,
		IsDefault:        account.IsDefault,
		IsSuspended:      account.IsSuspended,
		TwoFactorEnabled: account.TwoFactorEnabled,
		TwoFactorMethod:  account.TwoFactorMethod,
		CreatedAt:        account.CreatedAt,
	}
	if account.Role != nil {
		response.Role = account.Role.Name
	}
	return response
}

func NewRoleResponse(role *model.Role) RoleResponse {
	perms := role.PermissionList()
	if perms == nil {
		perms = []string{}
	}
	return RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: perms,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

// NewSessionInfo exposes only a prefix of the session id and never the
// token hashes.
func NewSessionInfo(session *model.Session, currentID string) SessionInfo {
	ref := session.ID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return SessionInfo{
		ID:         ref,
		Current:    session.ID == currentID,
		IP:         session.IP,
		UserAgent:  session.UserAgent,
		RememberMe: session.RememberMe,
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
	}
}
