// Package apperr defines the error taxonomy shared by the order engine.
// Every denial carries a stable machine-readable code plus a human-readable
// message; handlers map the kind to an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Validation Kind = iota // malformed input
	Authorization          // tenant/role mismatch
	NotFound               // unknown order/detail/table
	Conflict               // duplicate or already-claimed action
	State                  // transition illegal for current status
	Infrastructure         // store or channel unavailable
)

// Stable rejection codes. Callers are expected to branch on these, never on
// message text.
const (
	CodeInvalidOrderStatus = "INVALID_ORDER_STATUS"
	CodeAlreadyPrepared    = "ALREADY_PREPARED"
	CodeNotPrepared        = "NOT_PREPARED"
	CodeAlreadyServed      = "ALREADY_SERVED"
	CodeOrderAlreadyTaken  = "ORDER_ALREADY_TAKEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodeInternal           = "INTERNAL"
)

type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	cause   error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return New(Validation, CodeBadRequest, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(Authorization, CodeUnauthorized, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, CodeNotFound, format, args...)
}

func Conflictf(code, format string, args ...any) *Error {
	return New(Conflict, code, format, args...)
}

func Statef(code, format string, args ...any) *Error {
	return New(State, code, format, args...)
}

// Infra wraps a store or channel failure. The cause is preserved for logs but
// never leaks into the client-facing message.
func Infra(cause error) *Error {
	return &Error{Kind: Infrastructure, Code: CodeInternal, Message: "internal error", cause: cause}
}

// KindOf returns the taxonomy kind of err; unrecognized errors are treated as
// infrastructure failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Infrastructure
}

// CodeOf returns the stable code of err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the user-visible message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// IsDenial reports whether err records a denied attempt on a concrete target,
// i.e. one that must leave an audit ledger entry.
func IsDenial(err error) bool {
	switch KindOf(err) {
	case Authorization, Conflict, State:
		return true
	}
	return false
}

// HTTPStatus maps the taxonomy onto response codes.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation, State:
		return http.StatusBadRequest
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
