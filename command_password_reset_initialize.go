package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type ForgotPasswordMessage struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
}

func (p ForgotPasswordMessage) Type() string { return "user.password_reset" }

func (p ForgotPasswordMessage) Validate() error {
	return validationFailure(validation.ValidateStruct(&p,
		validation.Field(&p.Email, notBlank, is.Email),
		validation.Field(&p.RedirectURL, notBlank, is.URL),
	))
}

// ForgotPassword stores a reset token digest and emails the plaintext link.
// An unknown email returns nil so callers cannot probe for accounts. A mail
// failure is returned to the caller.
func (s *AccountService) ForgotPassword(ctx context.Context, msg ForgotPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return s.forgotPassword(ctx, msg)
	}
}

func (s *AccountService) forgotPassword(ctx context.Context, msg ForgotPasswordMessage) error {
	msg.Email = NormalizeIdentity(msg.Email)
	if err := msg.Validate(); err != nil {
		return err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().FindByEmail(storeCtx, msg.Email)
	if err != nil {
		if goerrors.Is(err, ErrIdentityNotFound) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return passthrough(err, "could not retrieve user")
	}

	token, err := GenerateSingleUseToken(s.now(), s.opts.ResetTokenTTL)
	if err != nil {
		return err
	}

	link, err := buildLink(msg.RedirectURL, resetPasswordPath, token.Plaintext)
	if err != nil {
		return err
	}

	if err := s.users().SetResetToken(storeCtx, user.ID.String(), token.Digest, token.ExpiresAt); err != nil {
		return passthrough(err, "failed to store password reset token")
	}

	subject, body, err := s.resetEmail(user, link)
	if err != nil {
		return err
	}

	if err := s.sendEmail(ctx, user.Email, subject, body); err != nil {
		return err
	}

	s.logger.Info("password reset requested", "account_id", user.ID.String())
	return nil
}
