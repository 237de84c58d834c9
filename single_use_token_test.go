package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-user-auth"
)

func TestGenerateSingleUseToken(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	a, err := auth.GenerateSingleUseToken(now, time.Hour)
	require.NoError(t, err)
	b, err := auth.GenerateSingleUseToken(now, time.Hour)
	require.NoError(t, err)

	assert.Len(t, a.Plaintext, 64)
	assert.NotEqual(t, a.Plaintext, b.Plaintext)
	assert.NotEqual(t, a.Plaintext, a.Digest)
	assert.Equal(t, auth.DigestSingleUseToken(a.Plaintext), a.Digest)
	assert.Equal(t, now.Add(time.Hour), a.ExpiresAt)
}

func TestDigestSingleUseToken(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		auth.DigestSingleUseToken("abc"),
	)
}
