package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// LoginMessage accepts either a single identifier or a username and/or email.
type LoginMessage struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (e LoginMessage) Type() string { return "user.login" }

func (e LoginMessage) Validate() error {
	hasIdentity := strings.TrimSpace(e.Identifier) != "" ||
		strings.TrimSpace(e.Username) != "" ||
		strings.TrimSpace(e.Email) != ""
	if !hasIdentity {
		return NewValidationError("username or email is required", TextCodeMissingFields,
			"username: username or email is required")
	}
	return validationFailure(validation.ValidateStruct(&e,
		validation.Field(&e.Password, notBlank),
	))
}

// Login authenticates with a password and opens a session, replacing any
// stored refresh token.
func (s *AccountService) Login(ctx context.Context, msg LoginMessage) (*SessionResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
		return s.login(ctx, msg)
	}
}

func (s *AccountService) login(ctx context.Context, msg LoginMessage) (*SessionResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	user, err := s.lookupLogin(lookupCtx, msg)
	cancel()
	if err != nil {
		return nil, passthrough(err, "failed to look up account")
	}

	if user.IsFederatedAccount {
		s.logger.Debug("password login refused for federated account", "account_id", user.ID.String())
		return nil, ErrFederatedAccount
	}

	if s.opts.RequireEmailVerification && !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	if err := s.hasher.ComparePasswordAndHash(msg.Password, user.PasswordHash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			s.logger.Debug("login password mismatch", "account_id", user.ID.String())
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, passthrough(err, "failed to verify password")
	}

	res, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "account_id", user.ID.String())
	return res, nil
}

func (s *AccountService) lookupLogin(ctx context.Context, msg LoginMessage) (*User, error) {
	if strings.TrimSpace(msg.Identifier) != "" {
		return s.users().FindByIdentifier(ctx, msg.Identifier)
	}
	return s.users().FindByUsernameOrEmail(ctx, msg.Username, msg.Email)
}

// RefreshSession rotates a refresh token. The presented token must verify and
// equal the stored one; the swap is conditional on it still being stored, so
// a replayed or concurrently used token fails.
func (s *AccountService) RefreshSession(ctx context.Context, refreshToken string) (*SessionResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during session refresh")
	default:
		return s.refreshSession(ctx, refreshToken)
	}
}

func (s *AccountService) refreshSession(ctx context.Context, refreshToken string) (*SessionResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidSession
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.logger.Debug("refresh token rejected", "error", err)
		return nil, ErrInvalidSession
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().GetByID(ctx, claims.UserID())
	if err != nil {
		if goerrors.Is(err, ErrIdentityNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, passthrough(err, "failed to load account")
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		s.logger.Warn("refresh token is not current", "account_id", user.ID.String())
		return nil, ErrInvalidSession
	}

	pair, err := MintSessionPair(s.tokens, user)
	if err != nil {
		return nil, err
	}

	rotated, err := s.users().RotateRefreshToken(ctx, user.ID.String(), refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, passthrough(err, "failed to rotate refresh token")
	}
	if !rotated {
		s.logger.Warn("refresh token rotated concurrently", "account_id", user.ID.String())
		return nil, ErrInvalidSession
	}
	user.RefreshToken = pair.RefreshToken

	return &SessionResult{
		User:   user.Public(),
		Tokens: pair,
	}, nil
}

// Logout revokes the stored refresh token. It is idempotent.
func (s *AccountService) Logout(ctx context.Context, accountID string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during logout")
	default:
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.users().ClearRefreshToken(ctx, strings.TrimSpace(accountID)); err != nil {
		return passthrough(err, "failed to clear refresh token")
	}

	s.logger.Info("logout", "account_id", accountID)
	return nil
}
