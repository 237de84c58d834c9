package config_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-user-auth"
	"github.com/goliatone/go-user-auth/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "production")
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret-0123456789")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret-0123456789")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, "/api/v1/users", cfg.RoutePrefix)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	assert.Equal(t, 240*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, 24*time.Hour, cfg.Account.ResetTokenTTL)
	assert.True(t, cfg.Account.RequireEmailVerification)
	assert.Equal(t, 6, cfg.Account.MinPasswordLength)
	assert.Equal(t, config.MailTransportLog, cfg.Mail.Transport)
	assert.False(t, cfg.GoogleEnabled())
	assert.True(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_EXPIRY", "5m")
	t.Setenv("REQUIRE_EMAIL_VERIFICATION", "false")
	t.Setenv("GOOGLE_CLIENT_IDS", "web-client,ios-client")
	t.Setenv("COOKIE_SAME_SITE", "Strict")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://localhost/auth")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Tokens.AccessTTL)
	assert.False(t, cfg.Account.RequireEmailVerification)
	assert.Equal(t, []string{"web-client", "ios-client"}, cfg.Google.ClientIDs)
	assert.True(t, cfg.GoogleEnabled())
	assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, router.CookieSameSiteStrictMode, cfg.CookieConfig().SameSite)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "")

	_, err := config.Load()
	require.Error(t, err)

	details := auth.ValidationDetails(err)
	require.NotEmpty(t, details)
	assert.Contains(t, details[0], "tokens")
}

func TestValidate_RejectsEqualSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("REFRESH_TOKEN_SECRET", "access-secret-0123456789")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, auth.ValidationDetails(err)[0], "must differ")
}

func TestValidate_RejectsNonPositiveTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("RESET_TOKEN_EXPIRY", "0s")

	_, err := config.Load()
	require.Error(t, err)
}

func TestValidate_SMTPRequiresHost(t *testing.T) {
	setRequired(t)
	t.Setenv("MAIL_TRANSPORT", "smtp")

	_, err := config.Load()
	require.Error(t, err)

	t.Setenv("MAIL_SMTP_HOST", "smtp.example.com")
	_, err = config.Load()
	require.NoError(t, err)
}

func TestAccountOptions(t *testing.T) {
	setRequired(t)
	t.Setenv("MIN_PASSWORD_LENGTH", "10")
	t.Setenv("APP_NAME", "Acme")

	cfg, err := config.Load()
	require.NoError(t, err)

	opts := cfg.AccountOptions()
	assert.Equal(t, 10, opts.MinPasswordLength)
	assert.Equal(t, "Acme", opts.AppName)
	assert.Equal(t, 5*time.Second, opts.StoreTimeout)

	tokens := cfg.TokenConfig()
	assert.Equal(t, []byte("access-secret-0123456789"), tokens.AccessSecret)
	assert.Equal(t, "go-user-auth", tokens.Issuer)
}
