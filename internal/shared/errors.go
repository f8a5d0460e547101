package shared

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrNotFound indicates a referenced id is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a constraint violation detected before mutation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a concurrent writer won the race for a row.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates a missing or rejected bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
)

// publicError carries the message shown to API callers next to the
// sentinels it classifies as.
type publicError struct {
	msg   string
	kinds []error
}

func (e *publicError) Error() string   { return e.msg }
func (e *publicError) Unwrap() []error { return e.kinds }

// Public builds an error whose message is safe to return to callers and
// which matches every kind with errors.Is.
func Public(msg string, kinds ...error) error {
	return &publicError{msg: msg, kinds: kinds}
}

// NotFound builds a NotFound error for the named entity.
func NotFound(entity string) error {
	return Public(entity+" not found", ErrNotFound)
}

// Validation builds a ValidationError with a formatted message.
func Validation(format string, args ...any) error {
	return Public(fmt.Sprintf(format, args...), ErrValidation)
}

// Conflict builds a ConflictError with a formatted message.
func Conflict(format string, args ...any) error {
	return Public(fmt.Sprintf(format, args...), ErrConflict)
}

// UserSafeMessage returns the part of err that can be shown to API callers.
// Unknown errors collapse into a generic message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var pub *publicError
	if errors.As(err, &pub) {
		return capitalize(pub.msg)
	}
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrForbidden} {
		if errors.Is(err, sentinel) {
			return trimSentinel(err.Error(), sentinel.Error())
		}
	}
	return "Internal server error"
}

func trimSentinel(msg, sentinel string) string {
	marker := sentinel + ": "
	if idx := strings.LastIndex(msg, marker); idx >= 0 {
		msg = msg[idx+len(marker):]
	}
	return capitalize(msg)
}

func capitalize(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
