package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const singleUseTokenBytes = 32

// SingleUseToken is a reset or verification token. Plaintext goes into the
// email, Digest is what gets stored.
type SingleUseToken struct {
	Plaintext string
	Digest    string
	ExpiresAt time.Time
}

// GenerateSingleUseToken returns 32 random bytes hex encoded together with
// the SHA-256 digest and an expiry of now+ttl.
func GenerateSingleUseToken(now time.Time, ttl time.Duration) (*SingleUseToken, error) {
	buf := make([]byte, singleUseTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate single use token")
	}

	plaintext := hex.EncodeToString(buf)
	return &SingleUseToken{
		Plaintext: plaintext,
		Digest:    DigestSingleUseToken(plaintext),
		ExpiresAt: now.Add(ttl).UTC(),
	}, nil
}

// DigestSingleUseToken hashes a presented token for lookup.
func DigestSingleUseToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
