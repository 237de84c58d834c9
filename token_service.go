package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenProfile is the identity data embedded in access tokens.
type TokenProfile struct {
	Email    string
	Username string
}

// TokenService mints and validates session tokens.
type TokenService interface {
	IssueAccessToken(accountID string, profile TokenProfile) (string, time.Time, error)
	IssueRefreshToken(accountID string) (string, time.Time, error)
	ValidateAccessToken(token string) (*AccessClaims, error)
	ValidateRefreshToken(token string) (*RefreshClaims, error)
}

// TokenConfig holds the secrets and lifetimes for both token kinds.
type TokenConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenServiceImpl implements the TokenService interface with HS256.
// Access and refresh tokens use different secrets so one can never be
// accepted as the other.
type TokenServiceImpl struct {
	accessKey  []byte
	accessTTL  time.Duration
	refreshKey []byte
	refreshTTL time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenConfig, logger Logger) *TokenServiceImpl {
	return &TokenServiceImpl{
		accessKey:  cfg.AccessSecret,
		accessTTL:  cfg.AccessTTL,
		refreshKey: cfg.RefreshSecret,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		logger:     loggerOrDefault(logger),
		now:        time.Now,
	}
}

// WithClock overrides the time source, used for issuing and validating.
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// IssueAccessToken signs an access token for the account.
func (ts *TokenServiceImpl) IssueAccessToken(accountID string, profile TokenProfile) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.accessTTL)
	claims := &AccessClaims{
		RegisteredClaims: ts.registeredClaims(accountID, now, expiresAt),
		UID:              accountID,
		Email:            profile.Email,
		Username:         profile.Username,
	}

	signed, err := ts.sign(claims, ts.accessKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs a refresh token for the account. Every call yields
// a distinct token because of the random jti.
func (ts *TokenServiceImpl) IssueRefreshToken(accountID string) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.refreshTTL)
	claims := &RefreshClaims{
		RegisteredClaims: ts.registeredClaims(accountID, now, expiresAt),
		UID:              accountID,
	}

	signed, err := ts.sign(claims, ts.refreshKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies signature and expiry of an access token.
func (ts *TokenServiceImpl) ValidateAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := ts.parse(token, claims, ts.accessKey); err != nil {
		return nil, err
	}
	if claims.UserID() == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// ValidateRefreshToken verifies signature and expiry of a refresh token.
func (ts *TokenServiceImpl) ValidateRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := ts.parse(token, claims, ts.refreshKey); err != nil {
		return nil, err
	}
	if claims.UserID() == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (ts *TokenServiceImpl) registeredClaims(accountID string, now, expiresAt time.Time) jwt.RegisteredClaims {
	claims := jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	ensureTokenID(&claims)
	return claims
}

func (ts *TokenServiceImpl) sign(claims jwt.Claims, key []byte) (string, error) {
	if len(key) == 0 {
		return "", goerrors.New("token signing key is not configured", goerrors.CategoryInternal)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

func (ts *TokenServiceImpl) parse(tokenString string, claims jwt.Claims, key []byte) error {
	if tokenString == "" {
		return ErrTokenMalformed
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token service rejected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenMalformed
	}

	if !token.Valid {
		return ErrTokenMalformed
	}
	return nil
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
