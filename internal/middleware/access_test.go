package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/internal/service"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/routing"
	"github.com/Payphone-Digital/marketplace-auth/pkg/secure"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	*service.AccessService
	sessions   map[string]*service.AuthData
	tokens     map[string]string
	resolveErr error
	resolved   int
}

func (f *fakeChecker) SessionFromToken(token string) (string, error) {
	sid, ok := f.tokens[token]
	if !ok {
		return "", apperrors.ErrUnauthorized
	}
	return sid, nil
}

func (f *fakeChecker) Resolve(_ context.Context, sessionID string) (*service.AuthData, error) {
	f.resolved++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	auth, ok := f.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return auth, nil
}

func newAuthData(sessionID, csrf string, perms ...string) *service.AuthData {
	user := &model.User{Email: "staff@example.com"}
	user.ID = 3
	account := &model.Account{UserID: 3}
	account.ID = 9
	return &service.AuthData{
		User:        user,
		Account:     account,
		Session:     &model.Session{ID: sessionID, AccountID: 9, UserID: 3, CSRFTokenHash: secure.HashToken(csrf)},
		Permissions: perms,
	}
}

var testRules = routing.StaticRules{
	{Method: http.MethodPost, Path: "/auth/login"},
	{Method: http.MethodPost, Path: "/auth/logout"},
	{Method: http.MethodGet, Path: "/staff/roles/:id", AuthRequired: true, Permission: constants.PermissionViewRoles},
	{Method: http.MethodPost, Path: "/users/me/2fa/enable", AuthRequired: true},
}

type observed struct {
	called bool
	id     string
	auth   *service.AuthData
	userID uint
}

func newTestRouter(t *testing.T, checker *fakeChecker) (*gin.Engine, *observed) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := routing.NewRouteRegistry(nil)
	require.NoError(t, routing.NewRefresher(registry, testRules, nil).Refresh(context.Background()))

	mw := NewAccessMiddleware(registry, checker, AccessConfig{BasePath: "/api/v1", Locales: []string{"en", "ar"}, CSRFEnabled: true})

	obs := &observed{}
	handler := func(c *gin.Context) {
		obs.called = true
		obs.id = RouteParam(c, "id")
		obs.auth, _ = GetAuthData(c)
		obs.userID, _ = ctxutil.GetUserID(c.Request.Context())
		c.JSON(http.StatusOK, constants.BuildSuccessResponse("ok"))
	}

	r := gin.New()
	r.Use(mw.Handle())
	api := r.Group("/api/v1")
	for _, prefix := range []string{"", "/en"} {
		g := api.Group(prefix)
		g.POST("/auth/login", handler)
		g.POST("/auth/logout", handler)
		g.GET("/staff/roles/:id", handler)
		g.POST("/users/me/2fa/enable", handler)
		g.GET("/unlisted", handler)
	}
	return r, obs
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["error"].(string)
	return code
}

func TestAccess_ParamsAndPermission(t *testing.T) {
	checker := &fakeChecker{sessions: map[string]*service.AuthData{
		"s1": newAuthData("s1", "csrf", constants.PermissionViewRoles),
	}}
	r, obs := newTestRouter(t, checker)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/en/staff/roles/42", nil)
	req.AddCookie(&http.Cookie{Name: constants.CookieSessionID, Value: "s1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, obs.called)
	assert.Equal(t, "42", obs.id)
	require.NotNil(t, obs.auth)
	assert.Equal(t, uint(9), obs.auth.Account.ID)
	assert.Equal(t, uint(3), obs.userID)
}

func TestAccess_Denials(t *testing.T) {
	tests := []struct {
		name       string
		checker    *fakeChecker
		method     string
		path       string
		cookie     string
		csrf       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no session",
			checker:    &fakeChecker{},
			method:     http.MethodGet,
			path:       "/api/v1/staff/roles/42",
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperrors.CodeUnauthorized,
		},
		{
			name:       "unknown session",
			checker:    &fakeChecker{},
			method:     http.MethodGet,
			path:       "/api/v1/staff/roles/42",
			cookie:     "gone",
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperrors.CodeUnauthorized,
		},
		{
			name:       "missing permission",
			checker:    &fakeChecker{sessions: map[string]*service.AuthData{"s1": newAuthData("s1", "csrf")}},
			method:     http.MethodGet,
			path:       "/api/v1/staff/roles/42",
			cookie:     "s1",
			wantStatus: http.StatusForbidden,
			wantCode:   apperrors.CodeForbidden,
		},
		{
			name:       "suspended account",
			checker:    &fakeChecker{resolveErr: apperrors.ErrAccountSuspended},
			method:     http.MethodGet,
			path:       "/api/v1/staff/roles/42",
			cookie:     "s1",
			wantStatus: http.StatusForbidden,
			wantCode:   apperrors.CodeAccountSuspended,
		},
		{
			name:       "unlisted route fails closed",
			checker:    &fakeChecker{},
			method:     http.MethodGet,
			path:       "/api/v1/unlisted",
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperrors.CodeUnauthorized,
		},
		{
			name:       "csrf header missing",
			checker:    &fakeChecker{sessions: map[string]*service.AuthData{"s1": newAuthData("s1", "csrf")}},
			method:     http.MethodPost,
			path:       "/api/v1/users/me/2fa/enable",
			cookie:     "s1",
			wantStatus: http.StatusForbidden,
			wantCode:   apperrors.CodeForbidden,
		},
		{
			name:       "csrf header wrong",
			checker:    &fakeChecker{sessions: map[string]*service.AuthData{"s1": newAuthData("s1", "csrf")}},
			method:     http.MethodPost,
			path:       "/api/v1/users/me/2fa/enable",
			cookie:     "s1",
			csrf:       "forged",
			wantStatus: http.StatusForbidden,
			wantCode:   apperrors.CodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, obs := newTestRouter(t, tt.checker)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: constants.CookieSessionID, Value: tt.cookie})
			}
			if tt.csrf != "" {
				req.Header.Set(constants.HeaderXCSRFToken, tt.csrf)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w))
			assert.False(t, obs.called)
		})
	}
}

func TestAccess_CSRFHeaderAccepted(t *testing.T) {
	checker := &fakeChecker{sessions: map[string]*service.AuthData{"s1": newAuthData("s1", "csrf")}}
	r, obs := newTestRouter(t, checker)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/2fa/enable", nil)
	req.AddCookie(&http.Cookie{Name: constants.CookieSessionID, Value: "s1"})
	req.Header.Set(constants.HeaderXCSRFToken, "csrf")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, obs.called)
}

func TestAccess_BearerSkipsCSRF(t *testing.T) {
	checker := &fakeChecker{
		sessions: map[string]*service.AuthData{"s1": newAuthData("s1", "csrf")},
		tokens:   map[string]string{"jwt": "s1"},
	}
	r, obs := newTestRouter(t, checker)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/2fa/enable", nil)
	req.Header.Set(constants.HeaderAuthorization, "Bearer jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, obs.called)
}

func TestAccess_PublicRoutes(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		checker := &fakeChecker{}
		r, obs := newTestRouter(t, checker)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, obs.auth)
		assert.Zero(t, checker.resolved)
	})

	t.Run("optional session is resolved", func(t *testing.T) {
		checker := &fakeChecker{sessions: map[string]*service.AuthData{"s1": newAuthData("s1", "csrf")}}
		r, obs := newTestRouter(t, checker)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: constants.CookieSessionID, Value: "s1"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, obs.auth)
		assert.Equal(t, "s1", obs.auth.Session.ID)
	})

	t.Run("broken session does not block", func(t *testing.T) {
		checker := &fakeChecker{resolveErr: apperrors.ErrAccountSuspended}
		r, obs := newTestRouter(t, checker)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: constants.CookieSessionID, Value: "s1"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, obs.auth)
	})
}
