// Package apperr defines the error kinds surfaced at the API boundary.
//
// Components wrap one of these sentinels so callers can classify any error with errors.Is
// without knowing which package produced it.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the credential is absent, invalid, expired or unverifiable.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the identity is valid but lacks the privilege for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the referenced resource does not exist or is not visible in the
	// current security context. The two cases are never distinguished.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a uniqueness rule was violated or a row changed underneath the caller.
	ErrConflict = errors.New("conflict")

	// ErrDataIntegrity means stored data violates an internal invariant.
	ErrDataIntegrity = errors.New("data integrity error")

	// ErrValidation means the caller supplied malformed input.
	ErrValidation = errors.New("validation error")
)

// Unauthorized returns an error of kind ErrUnauthorized with the given message.
func Unauthorized(format string, args ...any) error {
	return wrap(ErrUnauthorized, format, args...)
}

// Forbidden returns an error of kind ErrForbidden with the given message.
func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

// NotFound returns an error of kind ErrNotFound with the given message.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflict returns an error of kind ErrConflict with the given message.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// DataIntegrity returns an error of kind ErrDataIntegrity with the given message.
func DataIntegrity(format string, args ...any) error {
	return wrap(ErrDataIntegrity, format, args...)
}

// Validation returns an error of kind ErrValidation with the given message.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Detail returns the message of err with the kind suffix stripped, suitable for a client-facing
// response body.
func Detail(err error) string {
	var d *detailed
	if errors.As(err, &d) {
		return d.msg
	}
	return ""
}

type detailed struct {
	kind error
	msg  string
}

func (e *detailed) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *detailed) Unwrap() error {
	return e.kind
}

func wrap(kind error, format string, args ...any) error {
	return &detailed{kind: kind, msg: fmt.Sprintf(format, args...)}
}
