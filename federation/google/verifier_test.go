package google

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKID      = "test-key"
	testClientID = "web-client.apps.googleusercontent.com"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	given := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		testKID: keyfunc.NewGivenCustom(&key.PublicKey, keyfunc.GivenKeyOptions{
			Algorithm: jwt.SigningMethodRS256.Alg(),
		}),
	})

	v := NewWithKeyfunc(given.Keyfunc, Config{ClientIDs: []string{"other-client", testClientID}}, nopLogger{})
	v.WithClock(func() time.Time { return fixedNow })
	return v, key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "1234567890",
		"email":          "jane@gmail.com",
		"email_verified": true,
		"name":           "Jane Doe",
		"iat":            fixedNow.Add(-time.Minute).Unix(),
		"exp":            fixedNow.Add(time.Hour).Unix(),
	}
}

func TestVerifyIdentityToken(t *testing.T) {
	v, key := newTestVerifier(t)

	identity, err := v.VerifyIdentityToken(context.Background(), sign(t, key, baseClaims()))
	require.NoError(t, err)

	assert.Equal(t, Provider, identity.Provider)
	assert.Equal(t, "1234567890", identity.SubjectID)
	assert.Equal(t, "jane@gmail.com", identity.Email)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, "Jane Doe", identity.Name)
}

func TestVerifyIdentityToken_StringEmailVerified(t *testing.T) {
	v, key := newTestVerifier(t)

	claims := baseClaims()
	claims["iss"] = "accounts.google.com"
	claims["email_verified"] = "false"

	identity, err := v.VerifyIdentityToken(context.Background(), sign(t, key, claims))
	require.NoError(t, err)
	assert.False(t, identity.EmailVerified)
}

func TestVerifyIdentityToken_Rejects(t *testing.T) {
	v, key := newTestVerifier(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
	}{
		{"expired", func() string {
			c := baseClaims()
			c["exp"] = fixedNow.Add(-time.Minute).Unix()
			return sign(t, key, c)
		}},
		{"missing exp", func() string {
			c := baseClaims()
			delete(c, "exp")
			return sign(t, key, c)
		}},
		{"wrong issuer", func() string {
			c := baseClaims()
			c["iss"] = "https://evil.example.com"
			return sign(t, key, c)
		}},
		{"wrong audience", func() string {
			c := baseClaims()
			c["aud"] = "someone-else"
			return sign(t, key, c)
		}},
		{"missing subject", func() string {
			c := baseClaims()
			delete(c, "sub")
			return sign(t, key, c)
		}},
		{"wrong key", func() string {
			return sign(t, otherKey, baseClaims())
		}},
		{"hs256", func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims())
			token.Header["kid"] = testKID
			s, err := token.SignedString([]byte("secret-secret-secret"))
			require.NoError(t, err)
			return s
		}},
		{"garbage", func() string { return "not-a-jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.VerifyIdentityToken(context.Background(), tt.token())
			require.Error(t, err)
			assert.Nil(t, identity)
		})
	}
}

func TestVerifyIdentityToken_CancelledContext(t *testing.T) {
	v, key := newTestVerifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.VerifyIdentityToken(ctx, sign(t, key, baseClaims()))
	require.Error(t, err)
}

func TestNew_NilLoggerSurvivesRefreshFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"keys":[]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v, err := New(ctx, Config{ClientIDs: []string{testClientID}, JWKSURL: srv.URL}, nil)
	require.NoError(t, err)
	defer v.Close()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	// unknown kid forces a refresh, which fails against the server
	_, err = v.VerifyIdentityToken(context.Background(), sign(t, key, baseClaims()))
	require.Error(t, err)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestNewWithKeyfunc_NilLogger(t *testing.T) {
	v := NewWithKeyfunc(func(*jwt.Token) (any, error) { return nil, jwt.ErrTokenUnverifiable }, Config{}, nil)
	require.NotNil(t, v.logger)
}
