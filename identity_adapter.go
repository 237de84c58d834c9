package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const federatedCreateAttempts = 3

// GoogleLogin verifies a Google ID token, finds or creates the matching
// account and opens a session. Accounts created here are flagged federated
// and carry a password hash nobody can log in with. An existing account is
// only linked when the provider verified the email.
func (s *AccountService) GoogleLogin(ctx context.Context, idToken string) (*SessionResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during federated login")
	default:
		return s.googleLogin(ctx, idToken)
	}
}

func (s *AccountService) googleLogin(ctx context.Context, idToken string) (*SessionResult, error) {
	if s.verifier == nil {
		return nil, ErrFederationDisabled
	}

	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, NewValidationError("identity token is required", TextCodeMissingFields,
			"idToken: cannot be blank")
	}

	fedCtx, cancel := s.federationCtx(ctx)
	identity, err := s.verifier.VerifyIdentityToken(fedCtx, idToken)
	cancel()
	if err != nil {
		s.logger.Warn("identity token rejected", "error", err)
		return nil, ErrFederatedTokenInvalid
	}

	if identity == nil || NormalizeIdentity(identity.Email) == "" {
		return nil, ErrFederatedEmailMissing
	}

	user, err := s.findOrCreateFederated(ctx, identity)
	if err != nil {
		return nil, passthrough(err, "failed to resolve federated account")
	}

	if s.opts.RequireEmailVerification && !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	res, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("federated login succeeded", "account_id", user.ID.String(), "provider", identity.Provider)
	return res, nil
}

func (s *AccountService) findOrCreateFederated(ctx context.Context, identity *ExternalIdentity) (*User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	// an account created from this subject keeps matching after an email change
	if id, err := federatedID(identity); err == nil {
		if user, err := s.users().GetByID(ctx, id.String()); err == nil {
			return s.markFederatedEmailVerified(ctx, user, identity)
		}
	}

	email := NormalizeIdentity(identity.Email)

	for attempt := 0; attempt < federatedCreateAttempts; attempt++ {
		user, err := s.users().FindByEmail(ctx, email)
		if err == nil {
			// only a provider verified email may claim an existing account
			if !identity.EmailVerified {
				s.logger.Warn("refusing to link unverified federated email", "account_id", user.ID.String(), "provider", identity.Provider)
				return nil, ErrFederatedEmailUnverified
			}
			return s.markFederatedEmailVerified(ctx, user, identity)
		}
		if !goerrors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}

		user, err = s.newFederatedUser(identity, attempt)
		if err != nil {
			return nil, err
		}

		created, err := s.users().Create(ctx, user)
		if err == nil {
			s.logger.Info("federated account created", "account_id", created.ID.String(), "provider", identity.Provider)
			return created, nil
		}
		if !goerrors.Is(err, ErrAccountExists) {
			return nil, err
		}
		// username taken or the email was registered concurrently, try again
	}

	return nil, ErrAccountExists
}

func (s *AccountService) markFederatedEmailVerified(ctx context.Context, user *User, identity *ExternalIdentity) (*User, error) {
	if user.IsEmailVerified || !identity.EmailVerified {
		return user, nil
	}

	user.IsEmailVerified = true
	user.EmailVerificationTokenHash = ""
	user.EmailVerificationExpiry = nil
	return s.users().Update(ctx, user, WithColumns(
		"is_email_verified",
		"email_verification_token_hash",
		"email_verification_expiry",
	))
}

func (s *AccountService) newFederatedUser(identity *ExternalIdentity, attempt int) (*User, error) {
	hash, err := s.hasher.HashPassword(identity.SubjectID)
	if err != nil {
		return nil, passthrough(err, "failed to hash federated placeholder")
	}

	user := &User{
		Username:           federatedUsername(identity.Email, attempt),
		Email:              identity.Email,
		PasswordHash:       hash,
		IsEmailVerified:    identity.EmailVerified,
		IsFederatedAccount: true,
	}

	if id, err := federatedID(identity); err == nil {
		user.ID = id
	}
	return user, nil
}

func federatedID(identity *ExternalIdentity) (uuid.UUID, error) {
	return hashid.NewUUID(identity.Provider + ":" + identity.SubjectID)
}

// federatedUsername derives a username from the email local part. Retries
// get a random suffix.
func federatedUsername(email string, attempt int) string {
	local := NormalizeIdentity(email)
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}

	local = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, local)
	if local == "" {
		local = "user"
	}
	if len(local) > 48 {
		local = local[:48]
	}

	if attempt == 0 {
		return local
	}
	return local + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
