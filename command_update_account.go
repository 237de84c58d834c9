package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type UpdateAccountMessage struct {
	AccountID string `json:"-"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

func (e UpdateAccountMessage) Type() string { return "user.update" }

func (e UpdateAccountMessage) Validate() error {
	return validationFailure(validation.ValidateStruct(&e,
		validation.Field(&e.Username, usernameRules()...),
		validation.Field(&e.Email, notBlank, is.Email),
	))
}

// UpdateAccountDetails sets username and email. Either value owned by a
// different account is a conflict.
func (s *AccountService) UpdateAccountDetails(ctx context.Context, msg UpdateAccountMessage) (*PublicUser, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account update")
	default:
		return s.updateAccountDetails(ctx, msg)
	}
}

func (s *AccountService) updateAccountDetails(ctx context.Context, msg UpdateAccountMessage) (*PublicUser, error) {
	msg.Username = NormalizeIdentity(msg.Username)
	msg.Email = NormalizeIdentity(msg.Email)
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().GetByID(ctx, msg.AccountID)
	if err != nil {
		return nil, passthrough(err, "failed to load account")
	}

	other, err := s.users().FindByEmail(ctx, msg.Email)
	if err := ensureOwner(user, other, err); err != nil {
		return nil, err
	}

	other, err = s.users().FindByUsernameOrEmail(ctx, msg.Username, "")
	if err := ensureOwner(user, other, err); err != nil {
		return nil, err
	}

	user.Username = msg.Username
	user.Email = msg.Email
	if user, err = s.users().Update(ctx, user, WithColumns("username", "email"), WithValidation()); err != nil {
		return nil, passthrough(err, "failed to update account")
	}

	s.logger.Info("account updated", "account_id", user.ID.String())
	return user.Public(), nil
}

// ensureOwner fails with ErrAccountExists when a lookup found an account
// other than user.
func ensureOwner(user, other *User, lookupErr error) error {
	if lookupErr != nil {
		if goerrors.Is(lookupErr, ErrIdentityNotFound) {
			return nil
		}
		return passthrough(lookupErr, "failed to check account uniqueness")
	}
	if other != nil && other.ID != user.ID {
		return ErrAccountExists
	}
	return nil
}
