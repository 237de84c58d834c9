package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account record. Secret material never serializes to JSON.
type User struct {
	bun.BaseModel              `bun:"table:users,alias:usr"`
	ID                         uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username                   string     `bun:"username,notnull,unique" json:"username"`
	Email                      string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash               string     `bun:"password_hash,notnull" json:"-"`
	RefreshToken               string     `bun:"refresh_token,nullzero" json:"-"`
	ResetPasswordTokenHash     string     `bun:"reset_password_token_hash,nullzero" json:"-"`
	ResetPasswordExpiry        *time.Time `bun:"reset_password_expiry,nullzero" json:"-"`
	EmailVerificationTokenHash string     `bun:"email_verification_token_hash,nullzero" json:"-"`
	EmailVerificationExpiry    *time.Time `bun:"email_verification_expiry,nullzero" json:"-"`
	IsEmailVerified            bool       `bun:"is_email_verified,notnull" json:"isEmailVerified"`
	IsFederatedAccount         bool       `bun:"is_federated_account,notnull" json:"isFederatedAccount"`
	CreatedAt                  *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt                  *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
}

// PublicUser is the credential free view of a User.
type PublicUser struct {
	ID                 uuid.UUID  `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	IsEmailVerified    bool       `json:"isEmailVerified"`
	IsFederatedAccount bool       `json:"isFederatedAccount"`
	CreatedAt          *time.Time `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// Public strips every credential field.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		IsEmailVerified:    u.IsEmailVerified,
		IsFederatedAccount: u.IsFederatedAccount,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// Normalize lowercases and trims the identity fields in place.
func (u *User) Normalize() *User {
	u.Username = NormalizeIdentity(u.Username)
	u.Email = NormalizeIdentity(u.Email)
	return u
}

// Validate runs the record level rules that apply on create and on
// updates that opt into validation.
func (u *User) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&u.Email, validation.Required, is.Email),
		validation.Field(&u.PasswordHash, validation.Required),
	)
}

// NormalizeIdentity is applied to usernames and emails before they are
// stored or used in a lookup.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
