// Package apperror defines the operational error type every handler funnels
// its failures through. An Error carries the HTTP status it should be
// reported with; anything else is treated as an unexpected 500.
package apperror

import "net/http"

// Error is an expected, operational error with an HTTP status.
type Error struct {
	StatusCode int
	Code       string // optional machine-readable code
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Status returns the envelope status field for the error: "fail" for
// client errors, "error" for everything else.
func (e *Error) Status() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return "fail"
	}
	return "error"
}

func New(statusCode int, message string) *Error {
	return &Error{StatusCode: statusCode, Message: message}
}

func WithCode(statusCode int, code, message string) *Error {
	return &Error{StatusCode: statusCode, Code: code, Message: message}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, message)
}
