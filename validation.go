package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultMinPasswordLength applies when no policy is configured.
const DefaultMinPasswordLength = 6

var (
	errPasswordsDoNotMatch = errors.New("passwords do not match")
	errUsernameHasAt       = errors.New("must not contain @")
)

// ValidateStringEquals returns a rule that requires the value to equal str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errPasswordsDoNotMatch
		}
		return nil
	}
}

// usernameRules keep usernames disjoint from email addresses so a login
// identifier resolves to a single column.
func usernameRules() []validation.Rule {
	return []validation.Rule{
		notBlank,
		validation.Length(1, 64),
		validation.By(func(value any) error {
			s, _ := value.(string)
			if strings.Contains(s, "@") {
				return errUsernameHasAt
			}
			return nil
		}),
	}
}

// notBlank is validation.Required for strings that may be padded with spaces.
var notBlank = validation.By(func(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// FormatValidationErrors flattens ozzo errors into "field: message" lines,
// sorted by field.
func FormatValidationErrors(err error) []string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		if err == nil {
			return nil
		}
		return []string{err.Error()}
	}

	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, fmt.Sprintf("%s: %s", field, verrs[field].Error()))
	}
	return out
}

// validationFailure converts an ozzo error into a 400 rich error. The text
// code reflects the most specific failure found.
func validationFailure(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	details := FormatValidationErrors(err)
	textCode, message := classifyValidation(err)
	return NewValidationError(message, textCode, details...)
}

func classifyValidation(err error) (string, string) {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return TextCodeValidationFailed, "validation failed"
	}

	for _, fieldErr := range verrs {
		if errors.Is(fieldErr, errPasswordsDoNotMatch) {
			return TextCodePasswordMismatch, "passwords do not match"
		}
	}

	for _, fieldErr := range verrs {
		if isRequiredError(fieldErr) {
			return TextCodeMissingFields, "all fields are required"
		}
	}

	if fieldErr, ok := verrs["email"]; ok && fieldErr != nil {
		return TextCodeInvalidEmail, "invalid email address"
	}

	if fieldErr, ok := verrs["username"]; ok && errors.Is(fieldErr, errUsernameHasAt) {
		return TextCodeInvalidUsername, "username cannot contain @"
	}

	for field, fieldErr := range verrs {
		if strings.Contains(strings.ToLower(field), "password") && isLengthError(fieldErr) {
			return TextCodePasswordTooShort, "password does not meet the length policy"
		}
	}

	return TextCodeValidationFailed, "validation failed"
}

func isRequiredError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return msg == "cannot be blank" || msg == "is required"
}

func isLengthError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "the length must be")
}

func passwordRules(minLength int) []validation.Rule {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return []validation.Rule{
		notBlank,
		validation.Length(minLength, MaxPasswordLength),
	}
}
