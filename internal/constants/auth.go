package constants

// Cookie names
const (
	CookieAccessToken    = "access_token"
	CookieRefreshToken   = "refresh_token"
	CookieSessionID      = "session_id"
	CookieAccountID      = "account_id"
	CookieCSRFToken      = "csrf_token"
	CookieTwoFactorToken = "two_factor_token"
	CookieRememberMe     = "remember_me"
)

// AuthCookieNames lists every cookie written or cleared by the authenticator.
var AuthCookieNames = []string{
	CookieAccessToken,
	CookieRefreshToken,
	CookieSessionID,
	CookieAccountID,
	CookieCSRFToken,
	CookieTwoFactorToken,
	CookieRememberMe,
}

// OTPPurpose is the operation a one-time code authorises.
type OTPPurpose string

const (
	OTPEmailVerification OTPPurpose = "email_verification"
	OTPPhoneVerification OTPPurpose = "phone_verification"
	OTPPasswordReset     OTPPurpose = "password_reset"
	OTPTwoFactorEmail    OTPPurpose = "2fa_email"
	OTPTwoFactorPhone    OTPPurpose = "2fa_phone"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPEmailVerification, OTPPhoneVerification, OTPPasswordReset, OTPTwoFactorEmail, OTPTwoFactorPhone:
		return true
	}
	return false
}

// IsTwoFactor reports whether p gates a 2FA step.
func (p OTPPurpose) IsTwoFactor() bool {
	return p == OTPTwoFactorEmail || p == OTPTwoFactorPhone
}

// OTP record statuses
const (
	OTPStatusPending    = "pending"
	OTPStatusUsed       = "used"
	OTPStatusSuperseded = "superseded"
	OTPStatusExpired    = "expired"
	OTPStatusLocked     = "locked"
)

// Delivery channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Two-factor methods stored on an account
const (
	TwoFactorMethodEmail = "email"
	TwoFactorMethodPhone = "phone"
)

// Account kinds
const (
	AccountKindPersonal     = "personal"
	AccountKindOrganization = "organization"
	AccountKindStaff        = "staff"
)

// Identity states
const (
	IdentityUnregistered         = "UNREGISTERED"
	IdentityRegisteredUnverified = "REGISTERED_UNVERIFIED"
	IdentityRegisteredVerified   = "REGISTERED_VERIFIED"
)

// Session states
const (
	SessionAnonymous         = "ANONYMOUS"
	SessionAuthenticated     = "AUTHENTICATED"
	SessionTwoFactorPending  = "2FA_PENDING"
	SessionTwoFactorVerified = "2FA_VERIFIED"
)

// Permissions
const (
	PermissionAll            = "*"
	PermissionViewRoles      = "view_roles"
	PermissionManageRoles    = "manage_roles"
	PermissionViewAccounts   = "view_accounts"
	PermissionManageAccounts = "manage_accounts"
)

// Seeded roles
const (
	RoleSuperAdmin = "super_admin"
	RoleStaff      = "staff"
)
