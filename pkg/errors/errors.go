// Package errors defines AppError, the error type handlers render to clients.
// Each AppError carries a stable machine-readable code, a client-safe message
// and the HTTP status to answer with. The underlying cause stays internal.
package errors

import (
	"context"
	"errors"
	"net/http"
)

// AppError is a client-facing failure.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// New declares an AppError. Services use it for their sentinel errors.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return e.Message + ": " + e.Internal.Error()
	default:
		return e.Message
	}
}

// Unwrap exposes the internal cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches any AppError with the same non-empty code, so copies made by
// WithInternal or WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	if e == nil || e.Code == "" {
		return false
	}
	var other *AppError
	return errors.As(target, &other) && other != nil && other.Code == e.Code
}

// WithInternal returns a copy carrying cause.
func (e *AppError) WithInternal(cause error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = cause
	return &cpy
}

// WithMessage returns a copy with a replacement client message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Message = message
	return &cpy
}

// Generic errors shared by middleware and handlers.
var (
	ErrBadRequest         = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrForbidden          = New("FORBIDDEN", "Permission denied", http.StatusForbidden)
	ErrNotFound           = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrRateLimit          = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer     = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrUnavailable        = New("SERVICE_UNAVAILABLE", "Service temporarily unavailable", http.StatusServiceUnavailable)
)

// NewBadRequest is ErrBadRequest with a specific message.
func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}

// FromError returns the AppError in err's chain. Deadlines map to
// ErrUnavailable; anything else becomes ErrInternalServer wrapping err.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return ErrUnavailable.WithInternal(err)
	default:
		return ErrInternalServer.WithInternal(err)
	}
}
