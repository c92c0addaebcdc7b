// Package apperror defines the error kinds business operations return. Handlers map a kind to a
// transport status; the message is stable and safe to show to callers.
package apperror

import "errors"

// Kind classifies a business error.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindConflict           Kind = "conflict"
	KindFederationProvider Kind = "federation_provider"
	KindInvalidInput       Kind = "invalid_input"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindInternal           Kind = "internal"
)

// Error is a classified business error. Sentinels are declared with New next to the code that
// returns them and compared with errors.Is.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New returns a sentinel error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a new error of the given kind carrying cause for logging. The message is what
// callers see; cause is not rendered.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err. Unclassified errors never leak their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
