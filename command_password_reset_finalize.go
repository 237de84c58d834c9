package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type ResetPasswordMessage struct {
	Token           string `json:"-"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (e ResetPasswordMessage) Type() string { return "user.password_reset.finalize" }

func (e ResetPasswordMessage) Validate(minPasswordLength int) error {
	return validationFailure(validation.ValidateStruct(&e,
		validation.Field(&e.NewPassword, passwordRules(minPasswordLength)...),
		validation.Field(&e.ConfirmPassword, notBlank, validation.By(ValidateStringEquals(e.NewPassword))),
	))
}

// ResetPassword consumes a reset token and sets the new password. The stored
// refresh token is revoked by the same write.
func (s *AccountService) ResetPassword(ctx context.Context, msg ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return s.resetPassword(ctx, msg)
	}
}

func (s *AccountService) resetPassword(ctx context.Context, msg ResetPasswordMessage) error {
	if err := msg.Validate(s.opts.MinPasswordLength); err != nil {
		return err
	}

	token := strings.TrimSpace(msg.Token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	hash, err := s.hasher.HashPassword(msg.NewPassword)
	if err != nil {
		return passthrough(err, "invalid new password provided")
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().ConsumeResetToken(ctx, DigestSingleUseToken(token), s.now(), hash)
	if err != nil {
		if goerrors.Is(err, ErrIdentityNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return passthrough(err, "failed to finalize password reset")
	}

	s.logger.Info("password reset completed", "account_id", user.ID.String())
	return nil
}
