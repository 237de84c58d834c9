package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// ClaimsContextKey is the router Locals key holding the access claims.
const ClaimsContextKey = "auth_claims"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the access claims in the given context
func WithClaimsContext(ctx context.Context, claims *AccessClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the access claims from the standard context
func GetClaims(ctx context.Context) (*AccessClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*AccessClaims)
	return raw, ok && raw != nil
}

// GetRouterClaims extracts the access claims stored by the access guard.
func GetRouterClaims(c router.Context) (*AccessClaims, bool) {
	raw, ok := c.Locals(ClaimsContextKey).(*AccessClaims)
	return raw, ok && raw != nil
}

// CurrentAccountID returns the authenticated account id or
// ErrUnableToFindSession.
func CurrentAccountID(c router.Context) (string, error) {
	claims, ok := GetRouterClaims(c)
	if !ok || claims.UserID() == "" {
		return "", ErrUnableToFindSession
	}
	return claims.UserID(), nil
}
