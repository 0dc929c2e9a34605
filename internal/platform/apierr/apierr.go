package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	Forbidden
	Validation
	Conflict
	Unauthorized
	Upstream
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Upstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to return to clients; Err is the cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code string, err error) *Error {
	msg := ""
	if err != nil && kind != Internal {
		msg = err.Error()
	}
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func NotFoundf(code, format string, args ...any) *Error {
	return New(NotFound, code, fmt.Sprintf(format, args...))
}

func Validationf(code, format string, args ...any) *Error {
	return New(Validation, code, fmt.Sprintf(format, args...))
}

func Conflictf(code, format string, args ...any) *Error {
	return New(Conflict, code, fmt.Sprintf(format, args...))
}

func Unauthorizedf(code, format string, args ...any) *Error {
	return New(Unauthorized, code, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return Internal
}

// CodeOf returns the code of the first *Error in err's chain, or "internal_error".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e != nil && e.Code != "" {
		return e.Code
	}
	return "internal_error"
}

// HTTPStatus maps a kind to a status code. Forbidden maps to 404 so ownership
// failures are indistinguishable from missing rows.
func HTTPStatus(k Kind) int {
	switch k {
	case NotFound, Forbidden:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
