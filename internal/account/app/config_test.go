package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ostromart/accounts/internal/account/token"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "ostromart", cfg.Issuer)
	require.Equal(t, "accounts.db", cfg.DatabaseFile)
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)

	require.Equal(t, token.DefaultAccessTTL, cfg.AccessTokenTTL)
	require.Equal(t, token.DefaultRefreshTTL, cfg.RefreshTokenTTL)
	require.Equal(t, token.DefaultVerifyEmailTTL, cfg.VerifyEmailTTL)
	require.Equal(t, token.DefaultPasswordResetTTL, cfg.PasswordResetTTL)
	require.Equal(t, token.DefaultMFAChallengeTTL, cfg.MFAChallengeTTL)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ACCOUNTS_JWT_SECRET", "super-secret")
	t.Setenv("ACCOUNTS_ISSUER", "myshop")
	t.Setenv("ACCOUNTS_DATABASE_FILE", "/var/lib/accounts/accounts.db")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("REFRESH_TOKEN_TTL", "720h")
	t.Setenv("LOG_FORMAT", "text")

	cfg := LoadConfig()

	require.Equal(t, "super-secret", cfg.JWTSecret)
	require.Equal(t, "myshop", cfg.Issuer)
	require.Equal(t, "/var/lib/accounts/accounts.db", cfg.DatabaseFile)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfig_BadDurationFallsBack(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-duration")

	cfg := LoadConfig()
	require.Equal(t, token.DefaultAccessTTL, cfg.AccessTokenTTL)
}
