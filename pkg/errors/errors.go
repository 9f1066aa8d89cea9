package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation       = NewError("VALIDATION_ERROR", "Validation failed", http.StatusBadRequest)
	ErrBadRequest       = NewError("BAD_REQUEST", "Invalid request body", http.StatusBadRequest)
	ErrMethodNotAllowed = NewError("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed)
	ErrRateLimited      = NewError("RATE_LIMIT_EXCEEDED", "Too many submissions. Please try again later.", http.StatusTooManyRequests)
	ErrInternal         = NewError("INTERNAL_ERROR", "Error submitting event", http.StatusInternalServerError)
	ErrUpstream         = NewError("UPSTREAM_ERROR", "content repository request failed", http.StatusInternalServerError)
)

type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code so copies made by WithCause/WithDetail still compare equal
// to the sentinel they were derived from.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	err := *e
	err.Message = message
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

// ToHTTPStatus maps err to its response status. Errors outside this package
// are server failures.
func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ToErrorResponse renders err for the caller. Server-side failures collapse to
// the generic internal error: causes and details are never exposed.
func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Status >= http.StatusInternalServerError {
		appErr = ErrInternal
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"message":    appErr.Message,
		"error_code": appErr.Code,
	}

	for k, v := range appErr.Details {
		response[k] = v
	}

	return response
}
