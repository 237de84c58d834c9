package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-user-auth"
)

func TestBcryptHasher(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	t.Run("hash and compare", func(t *testing.T) {
		hash, err := hasher.HashPassword("s3cret!")
		require.NoError(t, err)
		assert.NotEqual(t, "s3cret!", hash)

		assert.NoError(t, hasher.ComparePasswordAndHash("s3cret!", hash))
		assert.ErrorIs(t, hasher.ComparePasswordAndHash("wrong", hash), auth.ErrMismatchedHashAndPassword)
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		a, err := hasher.HashPassword("s3cret!")
		require.NoError(t, err)
		b, err := hasher.HashPassword("s3cret!")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := hasher.HashPassword("")
		assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	})

	t.Run("too long password", func(t *testing.T) {
		_, err := hasher.HashPassword(strings.Repeat("a", auth.MaxPasswordLength+1))
		require.Error(t, err)
		assert.NotEmpty(t, auth.ValidationDetails(err))
	})

	t.Run("malformed stored hash", func(t *testing.T) {
		assert.ErrorIs(t, hasher.ComparePasswordAndHash("s3cret!", "abc"), auth.ErrMismatchedHashAndPassword)
	})
}

func TestNewBcryptHasher_CostFallback(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, auth.NewBcryptHasher(bcrypt.MinCost).Cost())
	assert.NotEqual(t, 1, auth.NewBcryptHasher(1).Cost())
	assert.GreaterOrEqual(t, auth.NewBcryptHasher(99).Cost(), bcrypt.MinCost)
}
