// Package errors provides structured error types carrying the OAuth 2.1
// error vocabulary (RFC 6749 §5.2) used across the authorization server.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth error codes. These are surfaced verbatim as the "error" field of
// token and authorization responses.
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidClient           = "invalid_client"
	CodeInvalidGrant            = "invalid_grant"
	CodeUnsupportedGrantType    = "unsupported_grant_type"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeAccessDenied            = "access_denied"
	CodeServerError             = "server_error"

	// CodeNotFound is internal only: storage misses that the caller maps to a
	// protocol error (or swallows, for revocation). It is never written to a
	// response body.
	CodeNotFound = "not_found"
)

// Error represents a structured error with a code and message.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// OAuthCode returns the OAuth error code and description for an error.
// Unrecognized errors (including wrapped storage faults) are reported as
// server_error: they indicate an infrastructure problem, not a protocol one.
func OAuthCode(err error) (code, description string) {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeNotFound {
		return e.Code, e.Message
	}
	return CodeServerError, "internal server error"
}

// HTTPStatus maps an error to the HTTP status for a token-style endpoint.
func HTTPStatus(err error) int {
	switch code, _ := OAuthCode(err); code {
	case CodeInvalidClient:
		return http.StatusUnauthorized
	case CodeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// NotFound creates a not found error.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// InvalidRequest creates an invalid_request error.
func InvalidRequest(message string) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// InvalidClient creates an invalid_client error.
func InvalidClient(message string) *Error {
	return &Error{
		Code:    CodeInvalidClient,
		Message: message,
	}
}

// InvalidGrant creates an invalid_grant error.
func InvalidGrant(message string) *Error {
	return &Error{
		Code:    CodeInvalidGrant,
		Message: message,
	}
}

// AccessDenied creates an access_denied error.
func AccessDenied(message string) *Error {
	return &Error{
		Code:    CodeAccessDenied,
		Message: message,
	}
}

// UnsupportedGrantType creates an unsupported_grant_type error.
func UnsupportedGrantType(grantType string) *Error {
	return &Error{
		Code:    CodeUnsupportedGrantType,
		Message: fmt.Sprintf("grant_type '%s' is not supported", grantType),
	}
}

// UnsupportedResponseType creates an unsupported_response_type error.
func UnsupportedResponseType(responseType string) *Error {
	return &Error{
		Code:    CodeUnsupportedResponseType,
		Message: fmt.Sprintf("response_type '%s' is not supported", responseType),
	}
}

// ServerError creates a server_error wrapping an infrastructure fault.
func ServerError(message string, err error) *Error {
	return &Error{
		Code:    CodeServerError,
		Message: message,
		Err:     err,
	}
}
