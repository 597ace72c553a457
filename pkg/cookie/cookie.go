package cookie

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/config"
	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/gin-gonic/gin"
)

// AuthCookies is the credential set written after a successful login.
type AuthCookies struct {
	SessionID    string
	AccountID    uint
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	RememberMe   bool
	ExpiresAt    time.Time
}

// Credentials are whatever the client presented on a request.
type Credentials struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	// FromCookie is set when the session came from a cookie, which makes the
	// request subject to the CSRF check.
	FromCookie bool
}

type Authenticator struct {
	domain   string
	path     string
	secure   bool
	sameSite http.SameSite
	now      func() time.Time
}

func NewAuthenticator(cfg config.CookieConfig) *Authenticator {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return &Authenticator{
		domain:   cfg.Domain,
		path:     path,
		secure:   cfg.Secure,
		sameSite: ParseSameSite(cfg.SameSite),
		now:      time.Now,
	}
}

// ParseSameSite maps strict/lax/none to the http constants, defaulting to lax.
func ParseSameSite(mode string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (a *Authenticator) set(c *gin.Context, name, value string, maxAge int, httpOnly bool) {
	c.SetSameSite(a.sameSite)
	c.SetCookie(name, value, maxAge, a.path, a.domain, a.secure, httpOnly)
}

// SetAuthCookies writes every auth cookie. Only csrf_token is readable by
// scripts.
func (a *Authenticator) SetAuthCookies(c *gin.Context, ac AuthCookies) {
	maxAge := int(ac.ExpiresAt.Sub(a.now()).Seconds())
	if maxAge <= 0 {
		a.ClearAuthCookies(c)
		return
	}

	a.set(c, constants.CookieSessionID, ac.SessionID, maxAge, true)
	a.set(c, constants.CookieAccessToken, ac.AccessToken, maxAge, true)
	a.set(c, constants.CookieRefreshToken, ac.RefreshToken, maxAge, true)
	a.set(c, constants.CookieAccountID, strconv.FormatUint(uint64(ac.AccountID), 10), maxAge, true)
	a.set(c, constants.CookieRememberMe, strconv.FormatBool(ac.RememberMe), maxAge, true)
	a.set(c, constants.CookieCSRFToken, ac.CSRFToken, maxAge, false)
}

// ClearAuthCookies expires every auth cookie. Safe to call repeatedly.
func (a *Authenticator) ClearAuthCookies(c *gin.Context) {
	for _, name := range constants.AuthCookieNames {
		a.set(c, name, "", -1, name != constants.CookieCSRFToken)
	}
}

// ReadCredentials collects credentials from cookies, falling back to an
// Authorization bearer token for the access token.
func ReadCredentials(c *gin.Context) Credentials {
	var creds Credentials

	if v, err := c.Cookie(constants.CookieSessionID); err == nil && v != "" {
		creds.SessionID = v
		creds.FromCookie = true
	}
	if v, err := c.Cookie(constants.CookieAccessToken); err == nil {
		creds.AccessToken = v
	}
	if v, err := c.Cookie(constants.CookieRefreshToken); err == nil {
		creds.RefreshToken = v
	}
	if v, err := c.Cookie(constants.CookieCSRFToken); err == nil {
		creds.CSRFToken = v
	}

	if creds.SessionID == "" {
		header := c.GetHeader(constants.HeaderAuthorization)
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
			creds.AccessToken = strings.TrimSpace(token)
			creds.FromCookie = false
		}
	}

	return creds
}
