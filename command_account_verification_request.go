package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type ResendVerificationMessage struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
}

func (e ResendVerificationMessage) Type() string { return "user.verification.resend" }

func (e ResendVerificationMessage) Validate() error {
	return validationFailure(validation.ValidateStruct(&e,
		validation.Field(&e.Email, notBlank, is.Email),
		validation.Field(&e.RedirectURL, notBlank, is.URL),
	))
}

// VerifyEmail consumes a verification token and marks the account verified.
// Unknown, expired and already used tokens all fail the same way.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*PublicUser, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return s.verifyEmail(ctx, token)
	}
}

func (s *AccountService) verifyEmail(ctx context.Context, token string) (*PublicUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().ConsumeVerificationToken(ctx, DigestSingleUseToken(token), s.now())
	if err != nil {
		if goerrors.Is(err, ErrIdentityNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, passthrough(err, "failed to verify email")
	}

	s.logger.Info("email verified", "account_id", user.ID.String())
	return user.Public(), nil
}

// ResendVerification issues a fresh verification token. Unknown and already
// verified emails succeed silently so the endpoint does not reveal accounts.
func (s *AccountService) ResendVerification(ctx context.Context, msg ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification resend")
	default:
		return s.resendVerification(ctx, msg)
	}
}

func (s *AccountService) resendVerification(ctx context.Context, msg ResendVerificationMessage) error {
	msg.Email = NormalizeIdentity(msg.Email)
	if err := msg.Validate(); err != nil {
		return err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().FindByEmail(storeCtx, msg.Email)
	if err != nil {
		if goerrors.Is(err, ErrIdentityNotFound) {
			s.logger.Debug("verification resend for unknown email")
			return nil
		}
		return passthrough(err, "failed to look up account")
	}

	if user.IsEmailVerified {
		return nil
	}

	token, err := GenerateSingleUseToken(s.now(), s.opts.VerificationTokenTTL)
	if err != nil {
		return err
	}

	link, err := buildLink(msg.RedirectURL, verifyEmailPath, token.Plaintext)
	if err != nil {
		return err
	}

	if err := s.users().SetVerificationToken(storeCtx, user.ID.String(), token.Digest, token.ExpiresAt); err != nil {
		return passthrough(err, "failed to store verification token")
	}

	subject, body, err := s.verificationEmail(user, link)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, user.Email, subject, body)
}
