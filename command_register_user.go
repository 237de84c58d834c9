package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	RedirectURL string `json:"redirectUrl"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the payload. requireRedirect is set when a verification
// email has to be sent.
func (e RegisterUserMessage) Validate(minPasswordLength int, requireRedirect bool) error {
	redirectRules := []validation.Rule{is.URL}
	if requireRedirect {
		redirectRules = append([]validation.Rule{notBlank}, redirectRules...)
	}

	return validationFailure(validation.ValidateStruct(&e,
		validation.Field(&e.Username, usernameRules()...),
		validation.Field(&e.Email, notBlank, is.Email),
		validation.Field(&e.Password, passwordRules(minPasswordLength)...),
		validation.Field(&e.RedirectURL, redirectRules...),
	))
}

// Register creates an account. With email verification enabled the account
// starts unverified and a verification link is emailed; the account is only
// kept if the email was handed to the mailer. No session is issued here.
func (s *AccountService) Register(ctx context.Context, msg RegisterUserMessage) (*SessionResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return s.register(ctx, msg)
	}
}

func (s *AccountService) register(ctx context.Context, msg RegisterUserMessage) (*SessionResult, error) {
	msg.Email = NormalizeIdentity(msg.Email)
	msg.Username = NormalizeIdentity(msg.Username)
	if err := msg.Validate(s.opts.MinPasswordLength, s.opts.RequireEmailVerification); err != nil {
		return nil, err
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	existing, err := s.users().FindByUsernameOrEmail(lookupCtx, msg.Username, msg.Email)
	cancel()
	if err == nil && existing != nil {
		return nil, ErrAccountExists
	}
	if err != nil && !goerrors.Is(err, ErrIdentityNotFound) {
		return nil, passthrough(err, "failed to check existing accounts")
	}

	hash, err := s.hasher.HashPassword(msg.Password)
	if err != nil {
		return nil, passthrough(err, "failed to hash password")
	}

	user := &User{
		Username:        msg.Username,
		Email:           msg.Email,
		PasswordHash:    hash,
		IsEmailVerified: !s.opts.RequireEmailVerification,
	}

	var token *SingleUseToken
	var link string
	if s.opts.RequireEmailVerification {
		if token, err = GenerateSingleUseToken(s.now(), s.opts.VerificationTokenTTL); err != nil {
			return nil, err
		}
		if link, err = buildLink(msg.RedirectURL, verifyEmailPath, token.Plaintext); err != nil {
			return nil, err
		}
		user.EmailVerificationTokenHash = token.Digest
		user.EmailVerificationExpiry = &token.ExpiresAt
	}

	txCtx, cancel := s.storeCtx(ctx)
	err = s.repo.RunInTx(txCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = s.users().CreateTx(ctx, tx, user)
		return err
	})
	cancel()
	if err != nil {
		return nil, passthrough(err, "user registration transaction failed")
	}

	// the verification email is sent after commit
	if token != nil {
		if err := s.sendVerification(ctx, user, link); err != nil {
			s.discardRegistration(ctx, user)
			return nil, err
		}
	}

	s.logger.Info("account registered", "account_id", user.ID.String(), "verification_required", s.opts.RequireEmailVerification)

	return &SessionResult{User: user.Public()}, nil
}

func (s *AccountService) sendVerification(ctx context.Context, user *User, link string) error {
	subject, body, err := s.verificationEmail(user, link)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, user.Email, subject, body)
}

// discardRegistration removes an account whose verification email could not
// be delivered, so the same email can register again.
func (s *AccountService) discardRegistration(ctx context.Context, user *User) {
	ctx, cancel := s.storeCtx(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.users().Delete(ctx, user.ID.String()); err != nil {
		s.logger.Error("failed to discard undelivered registration", "account_id", user.ID.String(), "error", err)
	}
}
