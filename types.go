package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is satisfied by glog.Logger and most structured loggers.
// Messages are short sentences followed by key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers transactional email. Implementations live in the mailer
// package.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// ExternalIdentity is the verified result of a federated sign in.
type ExternalIdentity struct {
	Provider      string
	SubjectID     string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityVerifier validates a provider issued identity token.
type IdentityVerifier interface {
	VerifyIdentityToken(ctx context.Context, token string) (*ExternalIdentity, error)
}

// AccountManager is the surface the HTTP controller needs. AccountService
// implements it.
type AccountManager interface {
	Register(ctx context.Context, msg RegisterUserMessage) (*SessionResult, error)
	VerifyEmail(ctx context.Context, token string) (*PublicUser, error)
	ResendVerification(ctx context.Context, msg ResendVerificationMessage) error
	Login(ctx context.Context, msg LoginMessage) (*SessionResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (*SessionResult, error)
	Logout(ctx context.Context, accountID string) error
	ChangePassword(ctx context.Context, msg ChangePasswordMessage) error
	ForgotPassword(ctx context.Context, msg ForgotPasswordMessage) error
	ResetPassword(ctx context.Context, msg ResetPasswordMessage) error
	UpdateAccountDetails(ctx context.Context, msg UpdateAccountMessage) (*PublicUser, error)
	DeleteAccount(ctx context.Context, accountID string) error
	GoogleLogin(ctx context.Context, idToken string) (*SessionResult, error)
	CurrentAccount(ctx context.Context, accountID string) (*PublicUser, error)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }

func (d defLogger) print(level, msg string, args ...any) {
	fmt.Printf("[%s] AUTH %s%s\n", level, msg, formatPairs(args))
}

func formatPairs(args []any) string {
	if len(args) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func loggerOrDefault(logger Logger) Logger {
	if logger == nil {
		return defLogger{}
	}
	return logger
}
