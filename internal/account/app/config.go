package app

import (
	"os"
	"time"

	"github.com/ostromart/accounts/internal/account/token"
)

// Config is the immutable process configuration. It is loaded once at
// startup and injected into component constructors; nothing reads the
// environment after that.
type Config struct {
	JWTSecret string // Required: HS256 signing secret for all signed tokens
	Issuer    string // Account name shown in authenticator apps

	DatabaseFile string // Path to SQLite database file (default: ./accounts.db)
	BaseURL      string // Public base URL embedded in notification links

	AccessTokenTTL   time.Duration // Access token lifetime (default: 30m)
	RefreshTokenTTL  time.Duration // Refresh token lifetime (default: 168h)
	VerifyEmailTTL   time.Duration // Email verification token lifetime (default: 1h)
	PasswordResetTTL time.Duration // Password reset token lifetime (default: 2h)
	MFAChallengeTTL  time.Duration // MFA challenge token lifetime (default: 5m)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	HousekeepingInterval time.Duration // Expired-token sweep interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		JWTSecret: os.Getenv("ACCOUNTS_JWT_SECRET"),
		Issuer:    getEnvOrDefault("ACCOUNTS_ISSUER", "ostromart"),

		DatabaseFile: getEnvOrDefault("ACCOUNTS_DATABASE_FILE", "accounts.db"),
		BaseURL:      getEnvOrDefault("ACCOUNTS_BASE_URL", "http://localhost:8080"),

		AccessTokenTTL:   getEnvDurationOrDefault("ACCESS_TOKEN_TTL", token.DefaultAccessTTL),
		RefreshTokenTTL:  getEnvDurationOrDefault("REFRESH_TOKEN_TTL", token.DefaultRefreshTTL),
		VerifyEmailTTL:   getEnvDurationOrDefault("VERIFY_EMAIL_TTL", token.DefaultVerifyEmailTTL),
		PasswordResetTTL: getEnvDurationOrDefault("PASSWORD_RESET_TTL", token.DefaultPasswordResetTTL),
		MFAChallengeTTL:  getEnvDurationOrDefault("MFA_CHALLENGE_TTL", token.DefaultMFAChallengeTTL),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
