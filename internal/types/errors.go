package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail    ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidProvider ErrorCode = "validation_invalid_provider"
	ErrCodeValidationInvalidMode     ErrorCode = "validation_invalid_dispatch_mode"
	ErrCodeValidationNoTemplate      ErrorCode = "validation_no_template"
	ErrCodeValidationNoCredential    ErrorCode = "validation_no_credential"
	ErrCodeValidationNoRecipients    ErrorCode = "validation_no_recipients"
	ErrCodeValidationNoEligible      ErrorCode = "validation_no_eligible_recipients"

	// Policy (422)
	ErrCodePolicyDomainRejected ErrorCode = "policy_domain_rejected"

	// Not Found (404)
	ErrCodeNotFoundTemplate   ErrorCode = "not_found_template"
	ErrCodeNotFoundCredential ErrorCode = "not_found_credential"

	// Dispatch (502)
	ErrCodeDispatchTotalFailure ErrorCode = "dispatch_total_failure"

	// Internal/Upstream (500/502/504)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeInternalAuditWrite    ErrorCode = "internal_audit_write_failed"
	ErrCodeInternalSealing       ErrorCode = "internal_credential_sealing_failed"
	ErrCodeInternalQueue         ErrorCode = "internal_queue_publish_failed"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamEmailAuth     ErrorCode = "upstream_email_auth_rejected"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamTimeout       ErrorCode = "upstream_timeout"

	ErrCodeEmailBlocked ErrorCode = "email_blocked"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "policy_"):
		return http.StatusUnprocessableEntity // 422
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeEmailBlocked):
		return http.StatusForbidden // 403
	case s == string(ErrCodeUpstreamTimeout):
		return http.StatusGatewayTimeout // 504
	case strings.HasPrefix(s, "dispatch_"), strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the platform.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
