package auth

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidPayload           = "INVALID_PAYLOAD"
	TextCodeValidationFailed         = "VALIDATION_FAILED"
	TextCodeMissingFields            = "MISSING_FIELDS"
	TextCodeInvalidEmail             = "INVALID_EMAIL"
	TextCodeInvalidUsername          = "INVALID_USERNAME"
	TextCodePasswordMismatch         = "PASSWORD_MISMATCH"
	TextCodePasswordTooShort         = "PASSWORD_TOO_SHORT"
	TextCodeEmptyPassword            = "EMPTY_PASSWORD"
	TextCodeAccountExists            = "ACCOUNT_EXISTS"
	TextCodeAccountNotFound          = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidCredentials       = "INVALID_CREDENTIALS"
	TextCodeInvalidSession           = "INVALID_SESSION"
	TextCodeSessionNotFound          = "SESSION_NOT_FOUND"
	TextCodeEmailNotVerified         = "EMAIL_NOT_VERIFIED"
	TextCodeTokenInvalidOrExpired    = "TOKEN_INVALID_OR_EXPIRED"
	TextCodeTokenExpired             = "TOKEN_EXPIRED"
	TextCodeTokenMalformed           = "TOKEN_MALFORMED"
	TextCodeFederatedAccount         = "FEDERATED_ACCOUNT"
	TextCodeFederatedTokenInvalid    = "FEDERATED_TOKEN_INVALID"
	TextCodeFederatedEmailMissing    = "FEDERATED_EMAIL_MISSING"
	TextCodeFederatedEmailUnverified = "FEDERATED_EMAIL_NOT_VERIFIED"
	TextCodeFederationDisabled       = "FEDERATION_DISABLED"
	TextCodeMailDeliveryFailed       = "MAIL_DELIVERY_FAILED"
	TextCodeInternal                 = "INTERNAL_ERROR"
	metadataValidationErrorsKey      = "errors"
	defaultInternalErrorMessage      = "an unexpected error occurred"
	federationUnavailableErrorCode   = http.StatusServiceUnavailable
)

// ErrUnableToParseData the request body could not be decoded
var ErrUnableToParseData = goerrors.New("unable to parse request data", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidPayload)

// ErrIdentityNotFound no account matches the lookup
var ErrIdentityNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrAccountExists username or email already taken
var ErrAccountExists = goerrors.New("an account with this username or email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeAccountExists)

// ErrMismatchedHashAndPassword password did not match the stored hash
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrNoEmptyString password can not be empty
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// ErrEmailNotVerified login attempted before the email was confirmed
var ErrEmailNotVerified = goerrors.New("email address has not been verified", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeEmailNotVerified)

// ErrInvalidSession the refresh token is missing, invalid or not current
var ErrInvalidSession = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidSession)

// ErrUnableToFindSession the request carries no access token
var ErrUnableToFindSession = goerrors.New("unauthorized request", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeSessionNotFound)

// ErrTokenExpired the token is past its expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed the token could not be parsed or verified
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrInvalidOrExpiredToken single use token unknown, consumed or expired
var ErrInvalidOrExpiredToken = goerrors.New("token is invalid or has expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeTokenInvalidOrExpired)

// ErrFederatedAccount password login on an account created through federation
var ErrFederatedAccount = goerrors.New("this account signs in with Google", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeFederatedAccount)

// ErrFederatedTokenInvalid the provider identity token failed verification
var ErrFederatedTokenInvalid = goerrors.New("invalid identity token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeFederatedTokenInvalid)

// ErrFederatedEmailMissing the provider did not assert an email
var ErrFederatedEmailMissing = goerrors.New("identity token has no email", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeFederatedEmailMissing)

// ErrFederatedEmailUnverified the provider did not verify the email of an
// identity that would be linked to an existing account
var ErrFederatedEmailUnverified = goerrors.New("identity email has not been verified by the provider", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeFederatedEmailUnverified)

// ErrFederationDisabled no identity verifier was configured
var ErrFederationDisabled = goerrors.New("google sign in is not configured", goerrors.CategoryOperation).
	WithCode(federationUnavailableErrorCode).
	WithTextCode(TextCodeFederationDisabled)

// NewValidationError builds a 400 error carrying per field details.
func NewValidationError(message, textCode string, details ...string) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(textCode)
	if len(details) > 0 {
		err = err.WithMetadata(map[string]any{
			metadataValidationErrorsKey: details,
		})
	}
	return err
}

// ValidationDetails returns the per field messages attached to err.
func ValidationDetails(err error) []string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	details, _ := richErr.Metadata[metadataValidationErrorsKey].([]string)
	return details
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

// passthrough keeps rich errors intact and wraps anything else as internal.
func passthrough(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeInternal)
}
