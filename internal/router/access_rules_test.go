package router

import (
	"context"
	"net/http"
	"testing"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/pkg/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRules(t *testing.T) *routing.RouteRegistry {
	t.Helper()
	registry := routing.NewRouteRegistry(nil)
	require.NoError(t, routing.NewRefresher(registry, AccessRules, nil).Refresh(context.Background()))
	return registry
}

func TestAccessRules_Load(t *testing.T) {
	registry := loadRules(t)
	assert.Equal(t, len(AccessRules), registry.Count())
}

func TestAccessRules_StaffRoleDetail(t *testing.T) {
	registry := loadRules(t)

	path := routing.NormalizePath("/api/v1/ar/staff/roles/42", "/api/v1", []string{"en", "ar"})
	rule, params, err := registry.Match(path, http.MethodGet)
	require.NoError(t, err)

	assert.Equal(t, "/staff/roles/:id", rule.Path)
	assert.Equal(t, "42", params["id"])
	assert.True(t, rule.AuthRequired)
	assert.Equal(t, constants.PermissionViewRoles, rule.Permission)
}

func TestAccessRules_Requirements(t *testing.T) {
	registry := loadRules(t)

	tests := []struct {
		method      string
		path        string
		auth        bool
		pendingOK   bool
		requires2FA bool
	}{
		{http.MethodPost, "/auth/login", false, false, false},
		{http.MethodPost, "/auth/logout", false, false, false},
		{http.MethodPost, "/auth/2fa/validate", true, true, false},
		{http.MethodGet, "/users/me", true, false, false},
		{http.MethodPost, "/users/me/2fa/confirm", true, false, false},
		{http.MethodPost, "/users/me/2fa/disable", true, false, true},
		{http.MethodPost, "/staff/accounts/7/suspend", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rule, _, err := registry.Match(tt.path, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.auth, rule.AuthRequired)
			assert.Equal(t, tt.pendingOK, rule.AllowPendingTwoFactor)
			assert.Equal(t, tt.requires2FA, rule.RequiresTwoFactor)
		})
	}

	_, _, err := registry.Match("/staff/roles/42", http.MethodDelete)
	assert.ErrorIs(t, err, routing.ErrMethodNotAllowed)
}
