package dispatch

import (
	"context"
	"errors"
	"fmt"

	"relaunch/internal/types"
)

// ValidationError aborts a request or run before any send is attempted. Its
// message is surfaced to the caller verbatim.
type ValidationError struct {
	Code    types.ErrorCode
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap exposes the AppError form for HTTP status mapping.
func (e *ValidationError) Unwrap() error {
	var details map[string]any
	if e.Field != "" {
		details = map[string]any{"field": e.Field}
	}
	return types.NewAppErrorWithDetails(e.Code, e.Message, nil, details)
}

func missingField(field, message string) *ValidationError {
	return &ValidationError{Code: types.ErrCodeValidationMissingField, Field: field, Message: message}
}

// PolicyRejection records that a recipient's domain is not deliverable
// through the active provider. It fails only that recipient.
type PolicyRejection struct {
	Provider types.EmailProvider
	Email    string
	Domain   string
}

func (e *PolicyRejection) Error() string {
	if e.Domain == "" {
		return fmt.Sprintf("recipient address has no domain; %s only delivers to allowed domains", e.Provider)
	}
	return fmt.Sprintf("domain %s is not supported by %s", e.Domain, e.Provider)
}

func (e *PolicyRejection) Unwrap() error {
	return types.NewAppErrorWithDetails(types.ErrCodePolicyDomainRejected, e.Error(), nil,
		map[string]any{"provider": e.Provider, "domain": e.Domain})
}

// ProviderError wraps a failed adapter call. The provider's message is kept
// as the failure reason, except for timeouts which report "timeout".
type ProviderError struct {
	Provider types.EmailProvider
	Err      error
}

func (e *ProviderError) Error() string {
	var appErr *types.AppError
	if errors.As(e.Err, &appErr) {
		return appErr.Message
	}
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed on a deadline.
func (e *ProviderError) Timeout() bool {
	var appErr *types.AppError
	if errors.As(e.Err, &appErr) && appErr.Code == types.ErrCodeUpstreamTimeout {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Reason is the DispatchResult reason for this failure.
func (e *ProviderError) Reason() string {
	if e.Timeout() {
		return "timeout"
	}
	return e.Error()
}

// AuditWriteError is a failed history append after a confirmed send. It is
// logged and counted but never changes the send outcome.
type AuditWriteError struct {
	ProspectID string
	Err        error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("history write failed for prospect %s: %v", e.ProspectID, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// BatchFailedError is the single aggregate error of a run where nothing was
// sent.
type BatchFailedError struct {
	Failed int
	Total  int
}

func (e *BatchFailedError) Error() string {
	return fmt.Sprintf("no emails sent: %d failure(s)", e.Failed)
}

func (e *BatchFailedError) Unwrap() error {
	return types.NewAppErrorWithDetails(types.ErrCodeDispatchTotalFailure, e.Error(), nil,
		map[string]any{"failed": e.Failed, "total": e.Total})
}
