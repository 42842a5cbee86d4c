package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds
const (
	// KindMissingParameter is returned when a required input is empty
	KindMissingParameter = "missing_parameter"

	// KindUpstreamRejected is returned when the upstream API answers with a non-200 status
	KindUpstreamRejected = "upstream_rejected"

	// KindUpstreamMalformed is returned when the upstream API answers 200 without the expected payload
	KindUpstreamMalformed = "upstream_malformed"

	// KindSessionAbsent is returned when the caller has no valid session
	KindSessionAbsent = "session_absent"

	// KindSignatureInvalid is returned when a signed value fails verification or has expired
	KindSignatureInvalid = "signature_invalid"

	// KindMethodNotAllowed is returned when an endpoint is called with the wrong HTTP method
	KindMethodNotAllowed = "method_not_allowed"

	// KindUnauthorized is returned when the caller has no API token
	KindUnauthorized = "unauthorized"

	// KindInternal is returned when there is an internal error
	KindInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Kind is the error kind
	Kind string

	// Message is the error message
	Message string

	// Status is the HTTP status reported for this error; zero means derive it from Kind
	Status int

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error
func New(kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// NewMissingParameter creates an error naming the empty parameter
func NewMissingParameter(name string) *Error {
	return New(KindMissingParameter, fmt.Sprintf("%s is required", name), nil)
}

// NewUpstreamRejected creates an error carrying the upstream status code
func NewUpstreamRejected(status int, message string) *Error {
	e := New(KindUpstreamRejected, message, nil)
	e.Status = status
	return e
}

// NewUpstreamMalformed creates an upstream malformed error
func NewUpstreamMalformed(message string, cause error) *Error {
	return New(KindUpstreamMalformed, message, cause)
}

// NewSessionAbsent creates a session absent error
func NewSessionAbsent(message string) *Error {
	return New(KindSessionAbsent, message, nil)
}

// NewInternal creates an internal error
func NewInternal(message string, cause error) *Error {
	return New(KindInternal, message, cause)
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind
func Is(err error, kind string) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps err to the status code a JSON endpoint should answer with
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}

	switch e.Kind {
	case KindMissingParameter, KindSignatureInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindSessionAbsent:
		return http.StatusUnprocessableEntity
	case KindUpstreamRejected, KindUpstreamMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
