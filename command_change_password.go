package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type ChangePasswordMessage struct {
	AccountID       string `json:"-"`
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (e ChangePasswordMessage) Type() string { return "user.password.change" }

func (e ChangePasswordMessage) Validate(minPasswordLength int) error {
	return validationFailure(validation.ValidateStruct(&e,
		validation.Field(&e.OldPassword, notBlank),
		validation.Field(&e.NewPassword, passwordRules(minPasswordLength)...),
		validation.Field(&e.ConfirmPassword, notBlank, validation.By(ValidateStringEquals(e.NewPassword))),
	))
}

// ChangePassword replaces the password of an authenticated account after
// checking the current one. The caller's session stays valid.
func (s *AccountService) ChangePassword(ctx context.Context, msg ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password change")
	default:
		return s.changePassword(ctx, msg)
	}
}

func (s *AccountService) changePassword(ctx context.Context, msg ChangePasswordMessage) error {
	if err := msg.Validate(s.opts.MinPasswordLength); err != nil {
		return err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().GetByID(ctx, msg.AccountID)
	if err != nil {
		return passthrough(err, "failed to load account")
	}

	if err := s.hasher.ComparePasswordAndHash(msg.OldPassword, user.PasswordHash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return goerrors.New("old password is incorrect", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode(TextCodeInvalidCredentials)
		}
		return passthrough(err, "failed to verify password")
	}

	hash, err := s.hasher.HashPassword(msg.NewPassword)
	if err != nil {
		return passthrough(err, "failed to hash password")
	}

	user.PasswordHash = hash
	if _, err := s.users().Update(ctx, user, WithColumns("password_hash")); err != nil {
		return passthrough(err, "failed to update password")
	}

	s.logger.Info("password changed", "account_id", user.ID.String())
	return nil
}
