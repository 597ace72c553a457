package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Session.RememberMeTTL)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, "/api/v1", cfg.Routing.BasePath)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ROUTING_LOCALES", " en , de ,,")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("OTP_LENGTH", "not-a-number")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"en", "de"}, cfg.Routing.Locales)
	assert.False(t, cfg.Cookie.Secure)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, "cache:6380", cfg.RedisAddress())
}

func TestLoadConfig_ProductionRequiresSecrets(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"default jwt secret", map[string]string{"OTP_PEPPER": "pepper", "ADMIN_PASSWORD": "Str0ng!Pass"}},
		{"default otp pepper", map[string]string{"JWT_SECRET": "secret", "ADMIN_PASSWORD": "Str0ng!Pass"}},
		{"default admin password", map[string]string{"JWT_SECRET": "secret", "OTP_PEPPER": "pepper", "SEED_ADMIN": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "production")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}

	t.Run("all secrets set", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("OTP_PEPPER", "pepper")
		t.Setenv("ADMIN_PASSWORD", "Str0ng!Pass")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestLoadConfig_RejectsOutOfRangeOTPLength(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("OTP_LENGTH", "12")

	_, err := LoadConfig()
	assert.Error(t, err)
}
