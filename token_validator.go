package auth

// AccessTokenValidator validates access tokens without tying callers to a
// specific signing implementation.
type AccessTokenValidator interface {
	ValidateAccessToken(tokenString string) (*AccessClaims, error)
}

// AccessTokenValidatorFunc adapts a function into an AccessTokenValidator.
type AccessTokenValidatorFunc func(tokenString string) (*AccessClaims, error)

// ValidateAccessToken satisfies the AccessTokenValidator interface.
func (f AccessTokenValidatorFunc) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}
