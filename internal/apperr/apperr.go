package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers. Handlers serialize the kind and
// message verbatim; everything else stays in logs.
type Kind string

const (
	InvalidArgument    Kind = "invalid-argument"
	Unauthenticated    Kind = "unauthenticated"
	PermissionDenied   Kind = "permission-denied"
	NotFound           Kind = "not-found"
	FailedPrecondition Kind = "failed-precondition"
	ResourceExhausted  Kind = "resource-exhausted"
	Internal           Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a caller-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error while keeping it for logs.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from any error, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf extracts the caller-facing message. Unclassified errors get
// a generic message so internals never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Erro interno. Tente novamente em instantes."
}

// HTTPStatus maps a kind onto the transport status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidArgument:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusConflict
	case ResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus maps an upstream gateway status code into a kind.
func FromHTTPStatus(code int) Kind {
	switch {
	case code == http.StatusBadRequest:
		return InvalidArgument
	case code == http.StatusUnauthorized:
		return Unauthenticated
	case code == http.StatusForbidden:
		return PermissionDenied
	case code == http.StatusNotFound:
		return NotFound
	case code == http.StatusTooManyRequests:
		return ResourceExhausted
	case code >= 500:
		return Internal
	default:
		return Internal
	}
}
