// Package config loads the service configuration from the environment.
// A .env file is read first outside production; real environment variables
// always win.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-user-auth"
)

const (
	MailTransportSMTP  = "smtp"
	MailTransportKafka = "kafka"
	MailTransportLog   = "log"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env         string `env:"ENV" envDefault:"development"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":3000"`
	RoutePrefix string `env:"ROUTE_PREFIX" envDefault:"/api/v1/users"`
	AppName     string `env:"APP_NAME" envDefault:"Account"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Tokens   TokenConfig
	Account  AccountConfig
	Cookies  CookieConfig `envPrefix:"COOKIE_"`
	Mail     MailConfig   `envPrefix:"MAIL_"`
	Google   GoogleConfig `envPrefix:"GOOGLE_"`
}

type DatabaseConfig struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"`
	DSN             string        `env:"DSN" envDefault:"file:auth.db?cache=shared"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

type TokenConfig struct {
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	Issuer        string        `env:"TOKEN_ISSUER" envDefault:"go-user-auth"`
}

type AccountConfig struct {
	RequireEmailVerification bool          `env:"REQUIRE_EMAIL_VERIFICATION" envDefault:"true"`
	ResetTokenTTL            time.Duration `env:"RESET_TOKEN_EXPIRY" envDefault:"24h"`
	VerificationTokenTTL     time.Duration `env:"VERIFICATION_TOKEN_EXPIRY" envDefault:"24h"`
	MinPasswordLength        int           `env:"MIN_PASSWORD_LENGTH" envDefault:"6"`
	BcryptCost               int           `env:"BCRYPT_COST" envDefault:"12"`
	StoreTimeout             time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	MailTimeout              time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`
	FederationTimeout        time.Duration `env:"FEDERATION_TIMEOUT" envDefault:"10s"`
}

type CookieConfig struct {
	Secure   bool   `env:"SECURE" envDefault:"true"`
	SameSite string `env:"SAME_SITE" envDefault:"Lax"`
	Domain   string `env:"DOMAIN"`
}

type MailConfig struct {
	Transport string `env:"TRANSPORT" envDefault:"log"`
	From      string `env:"FROM" envDefault:"no-reply@example.com"`
	FromName  string `env:"FROM_NAME"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASS"`

	KafkaBrokers []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"auth.emails"`
	KafkaTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"5s"`
	KafkaUser    string        `env:"KAFKA_USER"`
	KafkaPass    string        `env:"KAFKA_PASS"`
	KafkaTLS     bool          `env:"KAFKA_TLS" envDefault:"false"`
}

type GoogleConfig struct {
	ClientIDs       []string      `env:"CLIENT_IDS" envSeparator:","`
	JWKSURL         string        `env:"JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
	RefreshInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"1h"`
}

// Load reads .env (outside production) and the environment, then validates.
func Load(files ...string) (*Config, error) {
	if !isProduction(os.Getenv("ENV")) {
		// a missing .env file is fine
		_ = godotenv.Load(files...)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	err := validation.Errors{
		"config": validation.ValidateStruct(c,
			validation.Field(&c.HTTPAddr, validation.Required),
			validation.Field(&c.RoutePrefix, validation.Required),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
			validation.Field(&c.Database.DSN, validation.Required),
		),
		"tokens": validation.ValidateStruct(&c.Tokens,
			validation.Field(&c.Tokens.AccessSecret, validation.Required, validation.Length(16, 0)),
			validation.Field(&c.Tokens.RefreshSecret, validation.Required, validation.Length(16, 0),
				validation.By(notEqual(c.Tokens.AccessSecret, "must differ from the access token secret"))),
			validation.Field(&c.Tokens.AccessTTL, validation.By(positiveDuration)),
			validation.Field(&c.Tokens.RefreshTTL, validation.By(positiveDuration)),
		),
		"account": validation.ValidateStruct(&c.Account,
			validation.Field(&c.Account.ResetTokenTTL, validation.By(positiveDuration)),
			validation.Field(&c.Account.VerificationTokenTTL, validation.By(positiveDuration)),
			validation.Field(&c.Account.MinPasswordLength, validation.Min(1), validation.Max(auth.MaxPasswordLength)),
			validation.Field(&c.Account.BcryptCost, validation.Min(4), validation.Max(31)),
			validation.Field(&c.Account.StoreTimeout, validation.By(positiveDuration)),
			validation.Field(&c.Account.MailTimeout, validation.By(positiveDuration)),
			validation.Field(&c.Account.FederationTimeout, validation.By(positiveDuration)),
		),
		"cookies": validation.ValidateStruct(&c.Cookies,
			validation.Field(&c.Cookies.SameSite, validation.In("Lax", "Strict", "None")),
		),
		"mail": c.validateMail(),
		"google": validation.ValidateStruct(&c.Google,
			validation.Field(&c.Google.JWKSURL, is.URL),
		),
	}.Filter()

	if err != nil {
		return auth.NewValidationError("invalid configuration", auth.TextCodeValidationFailed,
			auth.FormatValidationErrors(err)...)
	}
	return nil
}

func (c *Config) validateMail() error {
	m := &c.Mail
	var smtpRules, kafkaRules []validation.Rule
	switch m.Transport {
	case MailTransportSMTP:
		smtpRules = append(smtpRules, validation.Required)
	case MailTransportKafka:
		kafkaRules = append(kafkaRules, validation.Required)
	}

	return validation.ValidateStruct(m,
		validation.Field(&m.Transport, validation.Required,
			validation.In(MailTransportSMTP, MailTransportKafka, MailTransportLog)),
		validation.Field(&m.From, validation.Required, is.Email),
		validation.Field(&m.SMTPHost, smtpRules...),
		validation.Field(&m.KafkaBrokers, kafkaRules...),
		validation.Field(&m.KafkaTopic, kafkaRules...),
	)
}

// GoogleEnabled reports whether federated login should be mounted.
func (c *Config) GoogleEnabled() bool {
	return len(c.Google.ClientIDs) > 0
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return isProduction(c.Env)
}

// AccountOptions maps the account section onto auth.Options.
func (c *Config) AccountOptions() auth.Options {
	return auth.Options{
		RequireEmailVerification: c.Account.RequireEmailVerification,
		ResetTokenTTL:            c.Account.ResetTokenTTL,
		VerificationTokenTTL:     c.Account.VerificationTokenTTL,
		MinPasswordLength:        c.Account.MinPasswordLength,
		StoreTimeout:             c.Account.StoreTimeout,
		MailTimeout:              c.Account.MailTimeout,
		FederationTimeout:        c.Account.FederationTimeout,
		AppName:                  c.AppName,
	}
}

// TokenConfig maps the token section onto auth.TokenConfig.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  []byte(c.Tokens.AccessSecret),
		AccessTTL:     c.Tokens.AccessTTL,
		RefreshSecret: []byte(c.Tokens.RefreshSecret),
		RefreshTTL:    c.Tokens.RefreshTTL,
		Issuer:        c.Tokens.Issuer,
	}
}

// CookieConfig maps the cookie section onto auth.CookieConfig.
func (c *Config) CookieConfig() auth.CookieConfig {
	cookies := auth.DefaultCookieConfig()
	cookies.Secure = c.Cookies.Secure
	cookies.Domain = c.Cookies.Domain
	switch strings.ToLower(c.Cookies.SameSite) {
	case "strict":
		cookies.SameSite = router.CookieSameSiteStrictMode
	case "none":
		cookies.SameSite = router.CookieSameSiteNoneMode
	default:
		cookies.SameSite = router.CookieSameSiteLaxMode
	}
	return cookies
}

func positiveDuration(value any) error {
	d, _ := value.(time.Duration)
	if d <= 0 {
		return errors.New("must be a positive duration")
	}
	return nil
}

func notEqual(other, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != "" && s == other {
			return errors.New(message)
		}
		return nil
	}
}

func isProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production":
		return true
	default:
		return false
	}
}
