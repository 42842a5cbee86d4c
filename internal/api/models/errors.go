package models

import (
	"errors"

	"handoff-gateway/pkg/apperrors"
)

// Error codes
const (
	// General errors
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError     = "INTERNAL_ERROR"

	// Handoff errors
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	ErrCodeSessionAbsent    = "SESSION_ABSENT"
	ErrCodeUpstreamRejected = "UPSTREAM_REJECTED"
	ErrCodeUpstreamInvalid  = "UPSTREAM_MALFORMED"

	// Authentication errors
	ErrCodeInvalidToken = "INVALID_TOKEN"
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to the error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// FromError converts a domain error into an API error with its HTTP status
func FromError(err error) *APIError {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	var code string
	switch apperrors.KindOf(err) {
	case apperrors.KindMissingParameter:
		code = ErrCodeMissingParameter
	case apperrors.KindSessionAbsent:
		code = ErrCodeSessionAbsent
	case apperrors.KindUpstreamRejected:
		code = ErrCodeUpstreamRejected
	case apperrors.KindUpstreamMalformed:
		code = ErrCodeUpstreamInvalid
	case apperrors.KindUnauthorized:
		code = ErrCodeUnauthorized
	case apperrors.KindMethodNotAllowed:
		code = ErrCodeMethodNotAllowed
	case apperrors.KindSignatureInvalid:
		code = ErrCodeInvalidToken
	default:
		code = ErrCodeInternalError
		message = "Internal server error"
	}
	return NewAPIError(code, message, status)
}

// Info returns the error in the response envelope form
func (e *APIError) Info() *ErrorInfo {
	return &ErrorInfo{Code: e.Code, Message: e.Message, Details: e.Details}
}
