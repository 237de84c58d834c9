// Package google verifies Google Sign-In ID tokens against Google's
// published signing keys.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-user-auth"
)

const (
	Provider = "google"

	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

var issuers = []string{"accounts.google.com", "https://accounts.google.com"}

type Config struct {
	// ClientIDs lists the OAuth client IDs accepted as audience.
	ClientIDs       []string
	JWKSURL         string
	RefreshInterval time.Duration
	Leeway          time.Duration
}

// Verifier implements auth.IdentityVerifier for Google ID tokens.
type Verifier struct {
	cfg     Config
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	logger  auth.Logger
	now     func() time.Time
}

var _ auth.IdentityVerifier = (*Verifier)(nil)

// New fetches the JWKS and keeps it refreshed in the background until ctx
// is done or Close is called. A nil logger falls back to auth.DefaultLogger.
func New(ctx context.Context, cfg Config, logger auth.Logger) (*Verifier, error) {
	if logger == nil {
		logger = auth.DefaultLogger()
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultJWKSURL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   cfg.RefreshInterval,
		RefreshTimeout:    10 * time.Second,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to refresh google signing keys", "error", err)
		},
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load google signing keys").
			WithMetadata(map[string]any{"url": cfg.JWKSURL})
	}

	v := NewWithKeyfunc(jwks.Keyfunc, cfg, logger)
	v.jwks = jwks
	return v, nil
}

// NewWithKeyfunc builds a verifier on top of an existing key source.
func NewWithKeyfunc(kf jwt.Keyfunc, cfg Config, logger auth.Logger) *Verifier {
	if logger == nil {
		logger = auth.DefaultLogger()
	}
	return &Verifier{
		cfg:     cfg,
		keyfunc: kf,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source used for expiry checks.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
}

// flexBool accepts true and "true"; older tokens carry the string form.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		*b = flexBool(strings.EqualFold(t, "true"))
	case nil:
		*b = false
	default:
		return fmt.Errorf("email_verified: unexpected type %T", raw)
	}
	return nil
}

func (v *Verifier) VerifyIdentityToken(ctx context.Context, token string) (*auth.ExternalIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during token verification")
	}

	claims := &idTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		v.logger.Debug("google identity token rejected", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid google identity token")
	}
	if !parsed.Valid {
		return nil, goerrors.New("invalid google identity token", goerrors.CategoryAuth)
	}

	if !slices.Contains(issuers, claims.Issuer) {
		return nil, goerrors.New("unexpected identity token issuer", goerrors.CategoryAuth).
			WithMetadata(map[string]any{"iss": claims.Issuer})
	}

	if !v.audienceAllowed(claims.Audience) {
		return nil, goerrors.New("identity token audience not allowed", goerrors.CategoryAuth).
			WithMetadata(map[string]any{"aud": []string(claims.Audience)})
	}

	if claims.Subject == "" {
		return nil, goerrors.New("identity token has no subject", goerrors.CategoryAuth)
	}

	return &auth.ExternalIdentity{
		Provider:      Provider,
		SubjectID:     claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
	}, nil
}

func (v *Verifier) audienceAllowed(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if slices.Contains(v.cfg.ClientIDs, a) {
			return true
		}
	}
	return false
}
