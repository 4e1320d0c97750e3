package edit

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorizes edit failures.
type ErrorCode string

const (
	// ErrCodeBadRequest indicates malformed input (empty content, missing ids).
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"

	// ErrCodeNotFound indicates the order or the message does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnauthorized indicates the caller owns neither the order nor
	// an admin role.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeConflict indicates another edit holds the lock.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeReparseFailed indicates the edited text made the suffix
	// replay fail. The stored order is untouched.
	ErrCodeReparseFailed ErrorCode = "REPARSE_FAILED"

	// ErrCodeInternal indicates a storage or infrastructure failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error is a categorized edit failure. The code drives both the CLI exit
// path and the HTTP status a server front end would answer with.
type Error struct {
	Code    ErrorCode
	Message string
	OrderID string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s: %s (order=%s)", e.Code, e.Message, e.OrderID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to its HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrCodeBadRequest, ErrCodeReparseFailed:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the edit error code from err, or ErrCodeInternal when
// err carries none. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrCodeInternal
}

func newError(code ErrorCode, orderID, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		OrderID: orderID,
	}
}
