package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

// Users is the credential store. Lookups by username or email expect
// normalized input and normalize it again anyway.
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetPublicByID(ctx context.Context, id string) (*PublicUser, error)
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	Create(ctx context.Context, user *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Update(ctx context.Context, user *User, opts ...UpdateOption) (*User, error)
	Delete(ctx context.Context, id string) error

	SetRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshToken(ctx context.Context, id string) error
	RotateRefreshToken(ctx context.Context, id, presented, next string) (bool, error)

	SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, digest string, now time.Time, passwordHash string) (*User, error)
	SetVerificationToken(ctx context.Context, id, digest string, expiresAt time.Time) error
	ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*User, error)
}

// UpdateOption configures Update.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	columns  []string
	validate bool
}

// WithColumns limits the update to the given columns. updated_at is always
// written.
func WithColumns(columns ...string) UpdateOption {
	return func(o *updateOptions) {
		o.columns = append(o.columns, columns...)
	}
}

// WithValidation runs User.Validate before writing. Writes of derived
// secret material skip it.
func WithValidation() UpdateOption {
	return func(o *updateOptions) {
		o.validate = true
	}
}

type users struct {
	base repository.Repository[*User]
	db   *bun.DB
	now  func() time.Time
}

var _ Users = (*users)(nil)

// NewUsersRepository returns a bun backed Users store.
func NewUsersRepository(db *bun.DB) Users {
	base := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		base: base,
		db:   db,
		now:  time.Now,
	}
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, ErrIdentityNotFound
	}

	user, err := a.base.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, mapStoreError(err, "failed to load account")
	}
	return user, nil
}

func (a *users) GetPublicByID(ctx context.Context, id string) (*PublicUser, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, ErrIdentityNotFound
	}

	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		ExcludeColumn("password_hash", "refresh_token",
			"reset_password_token_hash", "reset_password_expiry",
			"email_verification_token_hash", "email_verification_expiry").
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapStoreError(err, "failed to load account")
	}
	return record.Public(), nil
}

// FindByIdentifier resolves an email when the identifier looks like one and
// a username otherwise.
func (a *users) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = NormalizeIdentity(identifier)
	if identifier == "" {
		return nil, ErrIdentityNotFound
	}

	if isEmail(identifier) {
		if user, err := a.findOne(ctx, "email", identifier); err == nil || !goerrors.Is(err, ErrIdentityNotFound) {
			return user, err
		}
	}
	return a.findOne(ctx, "username", identifier)
}

func (a *users) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	username = NormalizeIdentity(username)
	email = NormalizeIdentity(email)
	if username == "" && email == "" {
		return nil, ErrIdentityNotFound
	}

	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if username != "" {
				q = q.WhereOr("?TableAlias.username = ?", username)
			}
			if email != "" {
				q = q.WhereOr("?TableAlias.email = ?", email)
			}
			return q
		}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapStoreError(err, "failed to look up account")
	}
	return record, nil
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeIdentity(email)
	if email == "" {
		return nil, ErrIdentityNotFound
	}
	return a.findOne(ctx, "email", email)
}

func (a *users) findOne(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapStoreError(err, "failed to look up account")
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	return a.CreateTx(ctx, a.db, user)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, goerrors.New("account is required", goerrors.CategoryInternal)
	}

	user.Normalize()
	if err := user.Validate(); err != nil {
		return nil, validationFailure(err)
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := a.now().UTC()
	if user.CreatedAt == nil {
		user.CreatedAt = &now
	}
	user.UpdatedAt = &now

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, mapStoreError(err, "failed to create account")
	}
	return user, nil
}

func (a *users) Update(ctx context.Context, user *User, opts ...UpdateOption) (*User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, goerrors.New("account id is required", goerrors.CategoryInternal)
	}

	o := &updateOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	user.Normalize()
	if o.validate {
		if err := user.Validate(); err != nil {
			return nil, validationFailure(err)
		}
	}

	now := a.now().UTC()
	user.UpdatedAt = &now

	q := a.db.NewUpdate().Model(user).WherePK()
	if len(o.columns) > 0 {
		q = q.Column(append(o.columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, mapStoreError(err, "failed to update account")
	}
	if !affected(res) {
		return nil, ErrIdentityNotFound
	}
	return user, nil
}

func (a *users) Delete(ctx context.Context, id string) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return mapStoreError(err, "failed to delete account")
	}
	if !affected(res) {
		return ErrIdentityNotFound
	}
	return nil
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
func (a *users) SetRefreshToken(ctx context.Context, id, token string) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("refresh_token = ?", token).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapStoreError(err, "failed to store refresh token")
	}
	if !affected(res) {
		return ErrIdentityNotFound
	}
	return nil
}

// ClearRefreshToken is idempotent and ignores unknown accounts.
func (a *users) ClearRefreshToken(ctx context.Context, id string) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("refresh_token = NULL").
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapStoreError(err, "failed to clear refresh token")
	}
	return nil
}

// RotateRefreshToken replaces presented with next only if presented is still
// the stored token. It reports whether the swap happened.
func (a *users) RotateRefreshToken(ctx context.Context, id, presented, next string) (bool, error) {
	if presented == "" {
		return false, nil
	}

	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("refresh_token = ?", next).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Where("refresh_token = ?", presented).
		Exec(ctx)
	if err != nil {
		return false, mapStoreError(err, "failed to rotate refresh token")
	}
	return affected(res), nil
}

func (a *users) SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("reset_password_token_hash = ?", digest).
		Set("reset_password_expiry = ?", expiresAt.UTC()).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapStoreError(err, "failed to store reset token")
	}
	if !affected(res) {
		return ErrIdentityNotFound
	}
	return nil
}

// ConsumeResetToken sets the new password hash for the account holding
// digest, provided it has not expired. The digest, its expiry and the refresh
// token are cleared by the same statement, so a token works once.
func (a *users) ConsumeResetToken(ctx context.Context, digest string, now time.Time, passwordHash string) (*User, error) {
	var user *User
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := a.findByDigestTx(ctx, tx, "reset_password_token_hash", digest)
		if err != nil {
			return err
		}
		if record.ResetPasswordExpiry == nil || !record.ResetPasswordExpiry.After(now) {
			return ErrInvalidOrExpiredToken
		}

		res, err := tx.NewUpdate().
			Model((*User)(nil)).
			Set("password_hash = ?", passwordHash).
			Set("reset_password_token_hash = NULL").
			Set("reset_password_expiry = NULL").
			Set("refresh_token = NULL").
			Set("is_federated_account = ?", false).
			Set("updated_at = ?", a.now().UTC()).
			Where("id = ?", record.ID).
			Where("reset_password_token_hash = ?", digest).
			Exec(ctx)
		if err != nil {
			return mapStoreError(err, "failed to reset password")
		}
		if !affected(res) {
			return ErrInvalidOrExpiredToken
		}

		record.PasswordHash = passwordHash
		record.ResetPasswordTokenHash = ""
		record.ResetPasswordExpiry = nil
		record.RefreshToken = ""
		record.IsFederatedAccount = false
		user = record
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "failed to reset password")
	}
	return user, nil
}

func (a *users) SetVerificationToken(ctx context.Context, id, digest string, expiresAt time.Time) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("email_verification_token_hash = ?", digest).
		Set("email_verification_expiry = ?", expiresAt.UTC()).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapStoreError(err, "failed to store verification token")
	}
	if !affected(res) {
		return ErrIdentityNotFound
	}
	return nil
}

// ConsumeVerificationToken marks the holder of digest as verified and clears
// the digest in the same statement.
func (a *users) ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*User, error) {
	var user *User
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := a.findByDigestTx(ctx, tx, "email_verification_token_hash", digest)
		if err != nil {
			return err
		}
		if record.EmailVerificationExpiry == nil || !record.EmailVerificationExpiry.After(now) {
			return ErrInvalidOrExpiredToken
		}

		res, err := tx.NewUpdate().
			Model((*User)(nil)).
			Set("is_email_verified = ?", true).
			Set("email_verification_token_hash = NULL").
			Set("email_verification_expiry = NULL").
			Set("updated_at = ?", a.now().UTC()).
			Where("id = ?", record.ID).
			Where("email_verification_token_hash = ?", digest).
			Exec(ctx)
		if err != nil {
			return mapStoreError(err, "failed to verify email")
		}
		if !affected(res) {
			return ErrInvalidOrExpiredToken
		}

		record.IsEmailVerified = true
		record.EmailVerificationTokenHash = ""
		record.EmailVerificationExpiry = nil
		user = record
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "failed to verify email")
	}
	return user, nil
}

func (a *users) findByDigestTx(ctx context.Context, tx bun.IDB, column, digest string) (*User, error) {
	if digest == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), digest).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, mapStoreError(err, "failed to look up token")
	}
	return record, nil
}

func mapStoreError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return ErrIdentityNotFound
	case isUniqueViolation(err):
		return ErrAccountExists
	default:
		return passthrough(err, message)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func affected(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func isEmail(s string) bool {
	return validation.Validate(s, is.Email) == nil
}
