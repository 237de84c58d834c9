package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are carried by short lived access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// RefreshClaims are carried by refresh tokens. They identify the account only.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UID string `json:"_id"`
}

// UserID returns the account id
func (c *AccessClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	return numericTime(c.ExpiresAt)
}

// UserID returns the account id
func (c *RefreshClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Expires returns the expiration time
func (c *RefreshClaims) Expires() time.Time {
	return numericTime(c.ExpiresAt)
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
