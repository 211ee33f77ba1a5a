// Package errors defines the service error taxonomy and its HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a service error.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal"
)

// ServiceError carries a client-facing message, a kind, and the HTTP status
// the handler should respond with. The freet modules historically used
// different statuses for similar validation failures (400 vs 413); callers
// set HTTPStatus explicitly where the default is wrong.
type ServiceError struct {
	Kind       Kind
	Message    string
	HTTPStatus int
}

func (e *ServiceError) Error() string { return e.Message }

// NotFound reports a missing entity.
func NotFound(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusNotFound}
}

// Forbidden reports an ownership violation.
func Forbidden(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusForbidden}
}

// Conflict reports a duplicate.
func Conflict(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindConflict, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusConflict}
}

// Validation reports a malformed or out-of-range input. Defaults to 400.
func Validation(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindValidation, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusBadRequest}
}

// ValidationStatus reports a validation failure with an explicit status,
// e.g. 413 for overlong freet content.
func ValidationStatus(status int, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindValidation, Message: fmt.Sprintf(format, args...), HTTPStatus: status}
}

// Unauthorized reports a missing or invalid session.
func Unauthorized(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusUnauthorized}
}

// RateLimitExceeded reports that the caller exceeded the request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("rate limit of %d requests per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Internal wraps an unexpected failure without leaking its details.
func Internal(msg string) *ServiceError {
	if msg == "" {
		msg = "internal error"
	}
	return &ServiceError{Kind: KindInternal, Message: msg, HTTPStatus: http.StatusInternalServerError}
}

// StatusOf extracts the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}
