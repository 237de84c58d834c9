package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// CurrentAccount returns the credential free view of an account.
func (s *AccountService) CurrentAccount(ctx context.Context, accountID string) (*PublicUser, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users().GetPublicByID(ctx, accountID)
	if err != nil {
		return nil, passthrough(err, "failed to load account")
	}
	return user, nil
}

// DeleteAccount removes the account record permanently.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account deletion")
	default:
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.users().Delete(ctx, accountID); err != nil {
		return passthrough(err, "failed to delete account")
	}

	s.logger.Info("account deleted", "account_id", accountID)
	return nil
}
