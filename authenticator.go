package auth

import (
	"context"
	"time"
)

// Options holds the account policy knobs.
type Options struct {
	// RequireEmailVerification sends a verification email on register and
	// refuses password login until the link is followed. When false new
	// accounts are created verified and no email is sent.
	RequireEmailVerification bool
	ResetTokenTTL            time.Duration
	VerificationTokenTTL     time.Duration
	MinPasswordLength        int
	StoreTimeout             time.Duration
	MailTimeout              time.Duration
	FederationTimeout        time.Duration
	AppName                  string
}

// DefaultOptions mirror the config defaults.
func DefaultOptions() Options {
	return Options{
		RequireEmailVerification: true,
		ResetTokenTTL:            24 * time.Hour,
		VerificationTokenTTL:     24 * time.Hour,
		MinPasswordLength:        DefaultMinPasswordLength,
		StoreTimeout:             5 * time.Second,
		MailTimeout:              10 * time.Second,
		FederationTimeout:        10 * time.Second,
		AppName:                  "Account",
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ResetTokenTTL <= 0 {
		o.ResetTokenTTL = def.ResetTokenTTL
	}
	if o.VerificationTokenTTL <= 0 {
		o.VerificationTokenTTL = def.VerificationTokenTTL
	}
	if o.MinPasswordLength <= 0 {
		o.MinPasswordLength = def.MinPasswordLength
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = def.StoreTimeout
	}
	if o.MailTimeout <= 0 {
		o.MailTimeout = def.MailTimeout
	}
	if o.FederationTimeout <= 0 {
		o.FederationTimeout = def.FederationTimeout
	}
	if o.AppName == "" {
		o.AppName = def.AppName
	}
	return o
}

// SessionResult is returned by every flow that may open a session. Tokens
// are empty when no session was issued.
type SessionResult struct {
	User   *PublicUser `json:"user"`
	Tokens *TokenPair  `json:"-"`
}

// HasSession reports whether tokens were issued.
func (r *SessionResult) HasSession() bool {
	return r != nil && r.Tokens != nil && r.Tokens.AccessToken != ""
}

// AccountService drives the account lifecycle. Each public method is one
// request scoped flow; the service keeps no per request state.
type AccountService struct {
	repo     RepositoryManager
	hasher   PasswordAuthenticator
	tokens   TokenService
	mailer   Mailer
	verifier IdentityVerifier
	opts     Options
	logger   Logger
	now      func() time.Time
}

var _ AccountManager = (*AccountService)(nil)

// ServiceOption configures AccountService.
type ServiceOption func(*AccountService)

// NewAccountService returns a service with DefaultOptions.
func NewAccountService(repo RepositoryManager, hasher PasswordAuthenticator, tokens TokenService, mailer Mailer, opts ...ServiceOption) *AccountService {
	s := &AccountService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		mailer: mailer,
		opts:   DefaultOptions(),
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.opts = s.opts.withDefaults()
	return s
}

// WithOptions replaces the policy options. Zero values fall back to defaults.
func WithOptions(o Options) ServiceOption {
	return func(s *AccountService) {
		s.opts = o
	}
}

// WithLogger overrides the logger used by the service.
func WithLogger(logger Logger) ServiceOption {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdentityVerifier enables GoogleLogin.
func WithIdentityVerifier(v IdentityVerifier) ServiceOption {
	return func(s *AccountService) {
		s.verifier = v
	}
}

// WithServiceClock overrides the time source.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

// Options returns the effective options.
func (s *AccountService) Options() Options {
	return s.opts
}

func (s *AccountService) users() Users {
	return s.repo.Users()
}

func (s *AccountService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func (s *AccountService) mailCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.MailTimeout)
}

func (s *AccountService) federationCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.FederationTimeout)
}

// issueSession mints a pair and stores the refresh token, replacing any
// previous one.
func (s *AccountService) issueSession(ctx context.Context, user *User) (*SessionResult, error) {
	pair, err := MintSessionPair(s.tokens, user)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.users().SetRefreshToken(ctx, user.ID.String(), pair.RefreshToken); err != nil {
		return nil, passthrough(err, "failed to store refresh token")
	}
	user.RefreshToken = pair.RefreshToken

	return &SessionResult{
		User:   user.Public(),
		Tokens: pair,
	}, nil
}
