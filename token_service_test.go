package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-user-auth"
)

const testAccountID = "6f1c1c8e-8d0c-4c9e-9a55-1a0d3c2b7e11"

func TestTokenService_AccessToken(t *testing.T) {
	ts := newTestTokens()

	token, expiresAt, err := ts.IssueAccessToken(testAccountID, auth.TokenProfile{
		Email:    "jane@acme.test",
		Username: "jane",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := ts.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, testAccountID, claims.UserID())
	assert.Equal(t, testAccountID, claims.Subject)
	assert.Equal(t, "jane@acme.test", claims.Email)
	assert.Equal(t, "jane", claims.Username)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, expiresAt, claims.Expires(), time.Second)
}

func TestTokenService_RefreshTokensAreDistinct(t *testing.T) {
	ts := newTestTokens()

	a, _, err := ts.IssueRefreshToken(testAccountID)
	require.NoError(t, err)
	b, _, err := ts.IssueRefreshToken(testAccountID)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	claims, err := ts.ValidateRefreshToken(a)
	require.NoError(t, err)
	assert.Equal(t, testAccountID, claims.UserID())
}

func TestTokenService_KindsAreNotInterchangeable(t *testing.T) {
	ts := newTestTokens()

	access, _, err := ts.IssueAccessToken(testAccountID, auth.TokenProfile{})
	require.NoError(t, err)
	refresh, _, err := ts.IssueRefreshToken(testAccountID)
	require.NoError(t, err)

	_, err = ts.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)

	_, err = ts.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestTokenService_Expired(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokens().WithClock(func() time.Time { return issuedAt })

	token, _, err := ts.IssueAccessToken(testAccountID, auth.TokenProfile{})
	require.NoError(t, err)

	ts.WithClock(func() time.Time { return issuedAt.Add(16 * time.Minute) })
	_, err = ts.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestTokenService_Rejects(t *testing.T) {
	ts := newTestTokens()

	t.Run("empty", func(t *testing.T) {
		_, err := ts.ValidateAccessToken("")
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ts.ValidateAccessToken("a.b.c")
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		assert.True(t, auth.IsMalformedError(err))
	})

	t.Run("other issuer", func(t *testing.T) {
		other := auth.NewTokenService(auth.TokenConfig{
			AccessSecret:  []byte(testAccessSecret),
			AccessTTL:     time.Minute,
			RefreshSecret: []byte(testRefreshSecret),
			RefreshTTL:    time.Hour,
			Issuer:        "someone-else",
		}, nopLogger{})
		token, _, err := other.IssueAccessToken(testAccountID, auth.TokenProfile{})
		require.NoError(t, err)

		_, err = ts.ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": testAccountID,
			"_id": testAccountID,
			"iss": "go-user-auth-test",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ts.ValidateAccessToken(signed)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": testAccountID,
			"iss": "go-user-auth-test",
		})
		signed, err := token.SignedString([]byte(testAccessSecret))
		require.NoError(t, err)

		_, err = ts.ValidateAccessToken(signed)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})
}

func TestMintSessionPair(t *testing.T) {
	ts := newTestTokens()
	user := &auth.User{Username: "jane", Email: "jane@acme.test"}

	pair, err := auth.MintSessionPair(ts, user)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	_, err = auth.MintSessionPair(nil, user)
	assert.Error(t, err)
	_, err = auth.MintSessionPair(ts, nil)
	assert.Error(t, err)
}
