package validation

import (
	"unicode/utf8"

	"github.com/drstein77/storefront/internal/models"
)

// MinLength applies to both username and password, counted in characters.
const MinLength = 6

const (
	MsgUsernameRequired = "Username is a required field"
	MsgUsernameShort    = "Username should be at least 6 characters"
	MsgPasswordRequired = "Password is a required field"
	MsgPasswordShort    = "Password should be at least 6 characters"
	MsgPasswordMismatch = "Password and Confirm Password do not match"
)

type Rule string

const (
	RuleRequired Rule = "required"
	RuleMinLen   Rule = "min_length"
	RuleMatch    Rule = "match"
)

// Error describes the first rule a form failed.
type Error struct {
	Field   string
	Rule    Rule
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ValidateRegistration checks the form rule by rule and stops at the first failure.
func ValidateRegistration(form models.RegisterForm) error {
	switch {
	case len(form.Username) == 0:
		return &Error{Field: "username", Rule: RuleRequired, Message: MsgUsernameRequired}
	case utf8.RuneCountInString(form.Username) < MinLength:
		return &Error{Field: "username", Rule: RuleMinLen, Message: MsgUsernameShort}
	case len(form.Password) == 0:
		return &Error{Field: "password", Rule: RuleRequired, Message: MsgPasswordRequired}
	case utf8.RuneCountInString(form.Password) < MinLength:
		return &Error{Field: "password", Rule: RuleMinLen, Message: MsgPasswordShort}
	case form.Password != form.ConfirmPassword:
		return &Error{Field: "confirmPassword", Rule: RuleMatch, Message: MsgPasswordMismatch}
	}
	return nil
}

// Valid is ValidateRegistration reduced to a boolean.
func Valid(form models.RegisterForm) bool {
	return ValidateRegistration(form) == nil
}

// ValidateLogin only requires both fields; length rules belong to registration.
func ValidateLogin(creds models.Credentials) error {
	if len(creds.Username) == 0 {
		return &Error{Field: "username", Rule: RuleRequired, Message: MsgUsernameRequired}
	}
	if len(creds.Password) == 0 {
		return &Error{Field: "password", Rule: RuleRequired, Message: MsgPasswordRequired}
	}
	return nil
}
