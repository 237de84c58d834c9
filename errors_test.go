package auth_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-user-auth"
)

func TestNewValidationError(t *testing.T) {
	err := auth.NewValidationError("invalid input", auth.TextCodeValidationFailed, "email: is required", "username: is required")

	assert.Equal(t, goerrors.CategoryValidation, err.Category)
	assert.Equal(t, 400, err.Code)
	assert.Equal(t, auth.TextCodeValidationFailed, err.TextCode)
	assert.Equal(t, []string{"email: is required", "username: is required"}, auth.ValidationDetails(err))
}

func TestValidationDetails_NonRich(t *testing.T) {
	assert.Nil(t, auth.ValidationDetails(errors.New("plain")))
	assert.Nil(t, auth.ValidationDetails(auth.ErrIdentityNotFound))
}

func TestSentinelStatusCodes(t *testing.T) {
	tests := []struct {
		err  *goerrors.Error
		code int
	}{
		{auth.ErrAccountExists, 409},
		{auth.ErrIdentityNotFound, 404},
		{auth.ErrMismatchedHashAndPassword, 401},
		{auth.ErrEmailNotVerified, 403},
		{auth.ErrInvalidSession, 401},
		{auth.ErrInvalidOrExpiredToken, 400},
		{auth.ErrFederatedAccount, 401},
		{auth.ErrFederationDisabled, 503},
	}

	for _, tt := range tests {
		t.Run(tt.err.TextCode, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestIsTokenErrors(t *testing.T) {
	assert.True(t, auth.IsTokenExpiredError(auth.ErrTokenExpired))
	assert.True(t, auth.IsTokenExpiredError(errors.New("token is expired by 1m")))
	assert.False(t, auth.IsTokenExpiredError(nil))

	assert.True(t, auth.IsMalformedError(auth.ErrTokenMalformed))
	assert.False(t, auth.IsMalformedError(errors.New("boom")))
}
