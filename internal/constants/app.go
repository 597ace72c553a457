package constants

// Application Information
const (
	AppName    = "Marketplace Auth"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Default Application Settings
const (
	DefaultPort        = "8080"
	DefaultEnvironment = EnvDevelopment
)

// Cache and key-value prefixes
const (
	CacheKeyPrefix          = "auth:"
	CacheKeyRolePermissions = CacheKeyPrefix + "role_permissions:"

	SessionKeyPrefix       = "session:"
	SessionTwoFactorPrefix = "session:2fa:"
	AccountSessionsPrefix  = "account_sessions:"
	OTPCooldownPrefix      = "otp_cooldown:"
	OTPQuotaPrefix         = "otp_quota:"
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)
