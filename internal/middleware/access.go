package middleware

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/service"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/cookie"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/Payphone-Digital/marketplace-auth/pkg/routing"
	"github.com/Payphone-Digital/marketplace-auth/pkg/secure"
	"github.com/gin-gonic/gin"
)

// AccessChecker resolves sessions and evaluates access rules.
type AccessChecker interface {
	SessionFromToken(token string) (string, error)
	Resolve(ctx context.Context, sessionID string) (*service.AuthData, error)
	Authorize(auth *service.AuthData, rule routing.AccessRule) error
}

type AccessConfig struct {
	BasePath    string
	Locales     []string
	CSRFEnabled bool
}

type AccessMiddleware struct {
	registry *routing.RouteRegistry
	checker  AccessChecker
	config   AccessConfig
}

func NewAccessMiddleware(registry *routing.RouteRegistry, checker AccessChecker, cfg AccessConfig) *AccessMiddleware {
	return &AccessMiddleware{registry: registry, checker: checker, config: cfg}
}

// Handle matches the request against the access table, resolves the caller's
// session and enforces the rule before the handler runs. Routes missing from
// the table require authentication.
func (m *AccessMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "middleware", "Access")

		path := routing.NormalizePath(c.Request.URL.Path, m.config.BasePath, m.config.Locales)
		rule, params, err := m.registry.Match(path, c.Request.Method)
		if err != nil {
			logger.DebugWithContext(ctx, "No access rule, failing closed").
				Method(c.Request.Method).
				Path(path).
				Err(err).
				Log()
			rule = &routing.AccessRule{Method: c.Request.Method, Path: path, AuthRequired: true}
			params = map[string]string{}
		}
		c.Set(constants.GinKeyAccessRule, *rule)
		c.Set(constants.GinKeyRouteParams, params)

		creds := cookie.ReadCredentials(c)
		auth, err := m.resolve(ctx, creds)
		if err != nil {
			if rule.AuthRequired {
				m.deny(c, ctx, path, err)
				return
			}
			auth = nil
		}

		if auth == nil {
			if rule.AuthRequired {
				m.deny(c, ctx, path, apperrors.ErrUnauthorized)
				return
			}
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		if rule.AuthRequired && m.config.CSRFEnabled && creds.FromCookie && !isSafeMethod(c.Request.Method) {
			header := c.GetHeader(constants.HeaderXCSRFToken)
			if header == "" || !secure.Equal(secure.HashToken(header), auth.Session.CSRFTokenHash) {
				m.deny(c, ctx, path, apperrors.ErrCSRFMismatch)
				return
			}
		}

		if rule.AuthRequired {
			if err := m.checker.Authorize(auth, *rule); err != nil {
				m.deny(c, ctx, path, err)
				return
			}
		}

		ctx = ctxutil.WithIdentity(ctx, auth.User.ID, auth.Account.ID, auth.Session.ID)
		c.Set(constants.GinKeyAuthData, auth)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (m *AccessMiddleware) resolve(ctx context.Context, creds cookie.Credentials) (*service.AuthData, error) {
	sessionID := creds.SessionID
	if sessionID == "" && creds.AccessToken != "" {
		sid, err := m.checker.SessionFromToken(creds.AccessToken)
		if err != nil {
			return nil, err
		}
		sessionID = sid
	}
	if sessionID == "" {
		return nil, nil
	}
	return m.checker.Resolve(ctx, sessionID)
}

func (m *AccessMiddleware) deny(c *gin.Context, ctx context.Context, path string, err error) {
	status := apperrors.ToHTTPStatus(err)
	logger.WarnWithContext(ctx, "Access denied").
		Method(c.Request.Method).
		Path(path).
		StatusCode(status).
		Err(err).
		Log()

	c.AbortWithStatusJSON(status, constants.BuildErrorResponse(
		apperrors.GetErrorCode(err),
		apperrors.GetErrorMessage(err),
		status,
		nil,
	))
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// GetAuthData returns the identity injected by the access middleware.
func GetAuthData(c *gin.Context) (*service.AuthData, bool) {
	v, ok := c.Get(constants.GinKeyAuthData)
	if !ok {
		return nil, false
	}
	auth, ok := v.(*service.AuthData)
	return auth, ok && auth != nil
}

// RouteParam returns a parameter captured from the access table pattern.
func RouteParam(c *gin.Context, name string) string {
	if v, ok := c.Get(constants.GinKeyRouteParams); ok {
		if params, ok := v.(map[string]string); ok {
			return params[name]
		}
	}
	return c.Param(name)
}

// MustAuthData is for handlers behind an authenticated rule.
func MustAuthData(c *gin.Context) (*service.AuthData, error) {
	auth, ok := GetAuthData(c)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return auth, nil
}
