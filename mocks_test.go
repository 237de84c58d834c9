package auth_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-user-auth"
	"github.com/goliatone/go-user-auth/persistence"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
	testRedirect      = "https://app.test"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type sentEmail struct {
	To      string
	Subject string
	HTML    string
}

// MockMailer implements auth.Mailer and keeps every email it was asked to
// send.
type MockMailer struct {
	mock.Mock
	mu   sync.Mutex
	sent []sentEmail
}

func (m *MockMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, HTML: html})
	m.mu.Unlock()

	args := m.Called(ctx, to, subject, html)
	return args.Error(0)
}

func (m *MockMailer) last(t *testing.T) sentEmail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email was sent")
	return m.sent[len(m.sent)-1]
}

func (m *MockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// MockIdentityVerifier implements auth.IdentityVerifier
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) VerifyIdentityToken(ctx context.Context, token string) (*auth.ExternalIdentity, error) {
	args := m.Called(ctx, token)
	identity, _ := args.Get(0).(*auth.ExternalIdentity)
	return identity, args.Error(1)
}

var linkTokenPattern = regexp.MustCompile(`/(verify-email|reset-password)/([0-9a-f]{64})`)

func tokenFromEmail(t *testing.T, email sentEmail) string {
	t.Helper()
	m := linkTokenPattern.FindStringSubmatch(email.HTML)
	require.Len(t, m, 3, "email has no token link: %s", email.HTML)
	return m[2]
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(ctx, persistence.Config{
		Driver: persistence.DriverSQLite,
		DSN:    ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Migrate(ctx, db, persistence.DriverSQLite))
	return db
}

func newTestTokens() *auth.TokenServiceImpl {
	return auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte(testAccessSecret),
		AccessTTL:     15 * time.Minute,
		RefreshSecret: []byte(testRefreshSecret),
		RefreshTTL:    240 * time.Hour,
		Issuer:        "go-user-auth-test",
	}, nopLogger{})
}

type testEnv struct {
	db       *bun.DB
	repo     auth.RepositoryManager
	tokens   *auth.TokenServiceImpl
	mailer   *MockMailer
	verifier *MockIdentityVerifier
	service  *auth.AccountService
}

func newTestEnv(t *testing.T, opts ...auth.ServiceOption) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       newTestDB(t),
		tokens:   newTestTokens(),
		mailer:   &MockMailer{},
		verifier: &MockIdentityVerifier{},
	}
	env.repo = auth.NewRepositoryManager(env.db)

	all := append([]auth.ServiceOption{
		auth.WithLogger(nopLogger{}),
		auth.WithIdentityVerifier(env.verifier),
	}, opts...)

	env.service = auth.NewAccountService(
		env.repo,
		auth.NewBcryptHasher(bcrypt.MinCost),
		env.tokens,
		env.mailer,
		all...,
	)
	return env
}

// seedUser stores a verified account with the given password.
func (e *testEnv) seedUser(t *testing.T, username, email, password string) *auth.User {
	t.Helper()
	hash, err := auth.NewBcryptHasher(bcrypt.MinCost).HashPassword(password)
	require.NoError(t, err)

	user, err := e.repo.Users().Create(context.Background(), &auth.User{
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		IsEmailVerified: true,
	})
	require.NoError(t, err)
	return user
}
