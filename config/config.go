package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Session      SessionConfig
	Cookie       CookieConfig
	OTP          OTPConfig
	RateLimit    RateLimitConfig
	Routing      RoutingConfig
	Notification NotificationConfig
	Kafka        KafkaConfig
}

type AppConfig struct {
	Name                       string        `mapstructure:"name"`
	Environment                string        `mapstructure:"environment"`
	Debug                      bool          `mapstructure:"debug"`
	Timeout                    time.Duration `mapstructure:"timeout"`
	Port                       string        `mapstructure:"port"`
	LogsPath                   string        `mapstructure:"logs_path"`
	BcryptCost                 int           `mapstructure:"bcrypt_cost"`
	SendVerificationOnRegister bool          `mapstructure:"send_verification_on_register"`
	SeedAdmin                  bool          `mapstructure:"seed_admin"`
	AdminEmail                 string        `mapstructure:"admin_email"`
	AdminPassword              string        `mapstructure:"admin_password"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	RememberMeTTL time.Duration `mapstructure:"remember_me_ttl"`
}

type CookieConfig struct {
	Domain      string `mapstructure:"domain"`
	Path        string `mapstructure:"path"`
	Secure      bool   `mapstructure:"secure"`
	SameSite    string `mapstructure:"same_site"`
	CSRFEnabled bool   `mapstructure:"csrf_enabled"`

	// AllowedOrigins are echoed back by CORS; credentials rule out "*".
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type OTPConfig struct {
	Length      int           `mapstructure:"length"`
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	Quota       int           `mapstructure:"quota"`
	QuotaWindow time.Duration `mapstructure:"quota_window"`
	Pepper      string        `mapstructure:"pepper"`
}

type RateLimitConfig struct {
	Request  int `mapstructure:"request"`
	Duration int `mapstructure:"duration"`
}

type RoutingConfig struct {
	BasePath string   `mapstructure:"base_path"`
	Locales  []string `mapstructure:"locales"`
}

type NotificationConfig struct {
	Driver           string        `mapstructure:"driver"`
	AWSRegion        string        `mapstructure:"aws_region"`
	SESFromAddress   string        `mapstructure:"ses_from_address"`
	SNSSenderID      string        `mapstructure:"sns_sender_id"`
	ProductName      string        `mapstructure:"product_name"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func LoadConfig() (*Config, error) {
	// A missing .env is fine; the process environment wins.
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:                       getEnv("APP_NAME", "marketplace-auth"),
			Environment:                getEnv("APP_ENV", "development"),
			Port:                       getEnv("APP_PORT", "8080"),
			Debug:                      getEnvAsBool("APP_DEBUG", true),
			Timeout:                    getEnvAsDuration("APP_TIMEOUT", 30*time.Second),
			LogsPath:                   getEnv("LOGS_PATH", "./logs"),
			BcryptCost:                 getEnvAsInt("BCRYPT_COST", 10),
			SendVerificationOnRegister: getEnvAsBool("SEND_VERIFICATION_ON_REGISTER", true),
			SeedAdmin:                  getEnvAsBool("SEED_ADMIN", true),
			AdminEmail:                 getEnv("ADMIN_EMAIL", "admin@marketplace.local"),
			AdminPassword:              getEnv("ADMIN_PASSWORD", "default_Admin@12345"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "auth_db"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			Database:     getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getEnvAsDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default_secret_key_change_in_production"),
			Issuer: getEnv("JWT_ISSUER", "marketplace-auth"),
		},
		Session: SessionConfig{
			TTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			RememberMeTTL: getEnvAsDuration("SESSION_REMEMBER_TTL", 30*24*time.Hour),
		},
		Cookie: CookieConfig{
			Domain:         getEnv("COOKIE_DOMAIN", ""),
			Path:           getEnv("COOKIE_PATH", "/"),
			Secure:         getEnvAsBool("COOKIE_SECURE", true),
			SameSite:       getEnv("COOKIE_SAMESITE", "lax"),
			CSRFEnabled:    getEnvAsBool("CSRF_ENABLED", true),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		OTP: OTPConfig{
			Length:      getEnvAsInt("OTP_LENGTH", 6),
			TTL:         getEnvAsDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			Cooldown:    getEnvAsDuration("OTP_COOLDOWN", 60*time.Second),
			Quota:       getEnvAsInt("OTP_QUOTA", 5),
			QuotaWindow: getEnvAsDuration("OTP_QUOTA_WINDOW", time.Hour),
			Pepper:      getEnv("OTP_PEPPER", "default_otp_pepper_change_in_production"),
		},
		RateLimit: RateLimitConfig{
			Request:  getEnvAsInt("RATE_LIMIT_MAX_REQUEST", 60),
			Duration: getEnvAsInt("RATE_LIMIT_DURATION", 60),
		},
		Routing: RoutingConfig{
			BasePath: getEnv("ROUTING_BASE_PATH", "/api/v1"),
			Locales:  getEnvAsSlice("ROUTING_LOCALES", []string{"en", "ar", "fr"}),
		},
		Notification: NotificationConfig{
			Driver:           getEnv("NOTIFY_DRIVER", "log"),
			AWSRegion:        getEnv("AWS_REGION", "eu-west-1"),
			SESFromAddress:   getEnv("SES_FROM_ADDRESS", "no-reply@example.com"),
			SNSSenderID:      getEnv("SNS_SENDER_ID", ""),
			ProductName:      getEnv("PRODUCT_NAME", "Marketplace"),
			Timeout:          getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
			BreakerThreshold: getEnvAsInt("NOTIFY_BREAKER_THRESHOLD", 5),
			BreakerTimeout:   getEnvAsDuration("NOTIFY_BREAKER_TIMEOUT", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:      getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:      getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:        getEnv("KAFKA_TOPIC", "auth-events"),
			WriteTimeout: getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.App.Environment == "production" {
		if strings.HasPrefix(c.JWT.Secret, "default_") {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if strings.HasPrefix(c.OTP.Pepper, "default_") {
			return fmt.Errorf("OTP_PEPPER must be set in production")
		}
		if c.App.SeedAdmin && strings.HasPrefix(c.App.AdminPassword, "default_") {
			return fmt.Errorf("ADMIN_PASSWORD must be set in production when SEED_ADMIN is on")
		}
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTP.Length)
	}
	if c.Session.TTL <= 0 || c.Session.RememberMeTTL <= 0 {
		return fmt.Errorf("session TTLs must be positive")
	}
	return nil
}

func (c *Config) DatabaseConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
