package auth

import (
	"errors"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-user-auth/middleware/jwtware"
)

// AccessTokenLookup reads the access cookie first and the bearer header
// second.
const AccessTokenLookup = "cookie:" + AccessTokenCookie + ",header:" + router.HeaderAuthorization

// NewAccessGuard rejects requests without a valid access token. Claims are
// stored in Locals under ClaimsContextKey and in the request context.
// Failures are returned as rich errors for the error middleware.
func NewAccessGuard(validator AccessTokenValidator) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ContextKey:  ClaimsContextKey,
		TokenLookup: AccessTokenLookup,
		TokenValidator: jwtware.TokenValidatorFunc(func(token string) (jwtware.Claims, error) {
			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		ValidationListeners: []jwtware.ValidationListener{
			func(ctx router.Context, claims jwtware.Claims) error {
				if access, ok := claims.(*AccessClaims); ok {
					ctx.SetContext(WithClaimsContext(ctx.Context(), access))
				}
				return nil
			},
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			switch {
			case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
				return ErrUnableToFindSession
			case IsTokenExpiredError(err):
				return ErrTokenExpired
			default:
				return ErrTokenMalformed
			}
		},
	})
}
