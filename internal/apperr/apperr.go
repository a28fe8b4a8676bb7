// Package apperr defines the error taxonomy shared by the engine, the lobby
// actors and the transports. Every expected failure is an *Error carrying a
// Kind (used to pick an HTTP status or a client reaction) and a stable Code
// that is sent over the wire.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindStateConflict Kind = "state_conflict"
	KindExhaustion    Kind = "exhaustion"
	KindValidation    Kind = "validation"
	KindInternal      Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// ErrInternal is what callers see when an operation fails unexpectedly.
var ErrInternal = New(KindInternal, "internal-error", "internal error")

// Invalid builds a validation error for a malformed payload.
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: "invalid-payload", Message: fmt.Sprintf(format, args...)}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal.Code
}

// Public returns the message safe to show a client. Unknown errors collapse
// to the generic internal message.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
