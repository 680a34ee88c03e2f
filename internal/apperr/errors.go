// README: Error kinds shared by every module and their HTTP status mapping.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindBadRequest         Kind = "BAD_REQUEST"
	KindAuth               Kind = "AUTH_ERROR"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindRateLimit          Kind = "RATE_LIMIT"
	KindExternal           Kind = "EXTERNAL_SERVICE_ERROR"
	KindExternalTimeout    Kind = "EXTERNAL_SERVICE_TIMEOUT"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL_ERROR"
)

var statusByKind = map[Kind]int{
	KindValidation:         http.StatusBadRequest,
	KindBadRequest:         http.StatusBadRequest,
	KindAuth:               http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindConflict:           http.StatusConflict,
	KindRateLimit:          http.StatusTooManyRequests,
	KindExternal:           http.StatusBadGateway,
	KindExternalTimeout:    http.StatusGatewayTimeout,
	KindServiceUnavailable: http.StatusServiceUnavailable,
	KindInternal:           http.StatusInternalServerError,
}

// Error is a classified failure. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Status(kind Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// HTTPStatus is Status(KindOf(err)).
func HTTPStatus(err error) int {
	return Status(KindOf(err))
}
