// Package validate checks untrusted request input before it reaches a
// database filter or insert document. Schema rules (required, length,
// charset) are enforced with go-playground/validator; on top of that the
// package rejects any field whose submitted shape is not a single plain
// scalar string. A document-database filter built from unchecked input can
// smuggle operator objects (e.g. a not-equal operator) in place of a scalar
// and subvert an equality filter, so shape is checked independent of content.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cdore/clubhouse/internal/apperror"
)

// v is the shared validator instance. It is safe for concurrent use.
var v = validator.New(validator.WithRequiredStructEnabled())

// SignupFields is the validated shape of a signup submission.
type SignupFields struct {
	Name     string `validate:"required,alphanum,max=20"`
	Email    string `validate:"required,max=255"`
	Password string `validate:"required,max=20"`
}

// LoginFields is the validated shape of a login submission.
type LoginFields struct {
	Email    string `validate:"required,max=255"`
	Password string `validate:"required,max=20"`
}

// Signup validates a signup form. Empty or whitespace-only required fields
// are reported first, one at a time, in name, email, password order, so the
// user is told the first missing field rather than a generic failure. Only
// then does the schema validation run.
func Signup(form url.Values) (*SignupFields, error) {
	if err := Scalar(form, "name", "email", "password"); err != nil {
		return nil, err
	}

	name := form.Get("name")
	email := form.Get("email")
	password := form.Get("password")

	if strings.TrimSpace(name) == "" {
		return nil, apperror.NewValidation("name", "Please provide a name.")
	}
	if strings.TrimSpace(email) == "" {
		return nil, apperror.NewValidation("email", "Please provide an email address.")
	}
	if strings.TrimSpace(password) == "" {
		return nil, apperror.NewValidation("password", "Please provide a password.")
	}

	fields := &SignupFields{Name: name, Email: email, Password: password}
	if err := v.Struct(fields); err != nil {
		return nil, toValidationError(err)
	}

	return fields, nil
}

// Login validates a login form. Field order for missing-field reporting is
// email, password.
func Login(form url.Values) (*LoginFields, error) {
	if err := Scalar(form, "email", "password"); err != nil {
		return nil, err
	}

	email := form.Get("email")
	password := form.Get("password")

	if strings.TrimSpace(email) == "" {
		return nil, apperror.NewValidation("email", "Please provide an email address.")
	}
	if strings.TrimSpace(password) == "" {
		return nil, apperror.NewValidation("password", "Please provide a password.")
	}

	fields := &LoginFields{Email: email, Password: password}
	if err := v.Struct(fields); err != nil {
		return nil, toValidationError(err)
	}

	return fields, nil
}

// Username validates a single user-supplied name, as used by the
// injection probe endpoint. Same charset and length rules as signup names.
func Username(name string) error {
	if err := v.Var(name, "required,alphanum,max=20"); err != nil {
		return apperror.NewValidation("user", "name must be 1-20 alphanumeric characters")
	}
	return nil
}

// Scalar verifies that each named field arrived as at most one plain scalar
// value. It rejects two smuggling encodings that turn a scalar parameter
// into a structured one on the server side:
//
//   - bracketed keys ("email[$ne]=x"), which some frameworks decode into
//     operator objects
//   - repeated keys ("name=a&name=b"), which decode into arrays
//
// A value that itself looks like a structured payload (leading "$", "{"
// or "[") is rejected as well. The check is on shape, not content: a "$"
// in the middle of a password is fine.
func Scalar(values url.Values, fields ...string) error {
	for key := range values {
		for _, field := range fields {
			if key != field && strings.HasPrefix(key, field+"[") {
				return apperror.NewValidation(field, "invalid value")
			}
		}
	}

	for _, field := range fields {
		vals, ok := values[field]
		if !ok {
			continue
		}
		if len(vals) > 1 {
			return apperror.NewValidation(field, "invalid value")
		}
		if operatorShaped(vals[0]) {
			return apperror.NewValidation(field, "invalid value")
		}
	}

	return nil
}

// operatorShaped reports whether s looks like a structured operator payload
// rather than a plain scalar: a bare operator token ("$ne") or a JSON
// object/array carrying one.
func operatorShaped(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	switch t[0] {
	case '$', '{', '[':
		return true
	}
	return false
}

// toValidationError converts a validator error into a field-specific
// AppError. Raw validator output never reaches the client.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.NewValidation("", "signup requirements not met")
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return apperror.NewValidation(field, fmt.Sprintf("Please provide a %s.", field))
	case "alphanum":
		return apperror.NewValidation(field, fmt.Sprintf("%s may only contain letters and digits", field))
	case "max":
		return apperror.NewValidation(field, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return apperror.NewValidation(field, fmt.Sprintf("%s is invalid", field))
	}
}
