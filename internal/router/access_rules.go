package router

import (
	"net/http"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/pkg/routing"
)

// AccessRules is the requirement table enforced by the access middleware.
// Paths are relative to the API base path and locale prefix. Routes served
// by the engine but absent here are treated as authenticated-only.
var AccessRules = routing.StaticRules{
	// Public
	{Method: http.MethodPost, Path: "/auth/register"},
	{Method: http.MethodPost, Path: "/auth/login"},
	{Method: http.MethodPost, Path: "/auth/logout"},
	{Method: http.MethodPost, Path: "/auth/refresh"},
	{Method: http.MethodPost, Path: "/auth/password/forgot"},
	{Method: http.MethodPost, Path: "/auth/password/reset"},

	// Second factor
	{Method: http.MethodPost, Path: "/auth/2fa/validate", AuthRequired: true, AllowPendingTwoFactor: true},
	{Method: http.MethodPost, Path: "/auth/2fa/request", AuthRequired: true, AllowPendingTwoFactor: true},
	{Method: http.MethodGet, Path: "/auth/session", AuthRequired: true, AllowPendingTwoFactor: true},

	// Session and contact
	{Method: http.MethodPost, Path: "/auth/logout-all", AuthRequired: true},
	{Method: http.MethodPost, Path: "/auth/verification/request", AuthRequired: true},
	{Method: http.MethodPost, Path: "/auth/verification/confirm", AuthRequired: true},
	{Method: http.MethodPost, Path: "/auth/contact/code", AuthRequired: true},
	{Method: http.MethodPut, Path: "/auth/contact", AuthRequired: true},

	// Self service
	{Method: http.MethodGet, Path: "/users/me", AuthRequired: true},
	{Method: http.MethodPut, Path: "/users/me", AuthRequired: true},
	{Method: http.MethodPut, Path: "/users/me/password", AuthRequired: true},
	{Method: http.MethodGet, Path: "/users/me/sessions", AuthRequired: true},
	{Method: http.MethodGet, Path: "/users/me/accounts", AuthRequired: true},
	{Method: http.MethodPost, Path: "/users/me/2fa/enable", AuthRequired: true},
	{Method: http.MethodPost, Path: "/users/me/2fa/confirm", AuthRequired: true},
	{Method: http.MethodPost, Path: "/users/me/2fa/disable", AuthRequired: true, RequiresTwoFactor: true},

	// Back office
	{Method: http.MethodGet, Path: "/staff/roles", AuthRequired: true, Permission: constants.PermissionViewRoles},
	{Method: http.MethodGet, Path: "/staff/roles/:id", AuthRequired: true, Permission: constants.PermissionViewRoles},
	{Method: http.MethodPost, Path: "/staff/roles", AuthRequired: true, Permission: constants.PermissionManageRoles, RequiresTwoFactor: true},
	{Method: http.MethodPost, Path: "/staff/accounts/:id/suspend", AuthRequired: true, Permission: constants.PermissionManageAccounts, RequiresTwoFactor: true},
	{Method: http.MethodPost, Path: "/staff/accounts/:id/unsuspend", AuthRequired: true, Permission: constants.PermissionManageAccounts, RequiresTwoFactor: true},
}
