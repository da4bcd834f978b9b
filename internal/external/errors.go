package external

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"relaunch/internal/types"
)

// maxErrorBody bounds how much of a provider error response is read.
const maxErrorBody = 64 << 10

// providerErrorBody covers the error shapes of the supported providers:
// SendGrid's {"errors":[{"message"}]} and MailerSend's {"message"}.
type providerErrorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// readProviderMessage extracts a human-readable message from an error
// response body, falling back to the raw text.
func readProviderMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "response body was unreadable"
	}
	var parsed providerErrorBody
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
			return parsed.Errors[0].Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// mapProviderStatus translates a non-success provider response into an
// AppError. The provider's own message is kept so callers can surface it.
func mapProviderStatus(provider string, status int, message string) *types.AppError {
	details := map[string]any{"provider_status": status}
	switch {
	case status == http.StatusUnauthorized:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamEmailAuth,
			fmt.Sprintf("%s rejected the API key: %s", provider, message), nil, details)
	case status == http.StatusForbidden:
		return types.NewAppErrorWithDetails(types.ErrCodeEmailBlocked,
			fmt.Sprintf("%s blocked delivery: %s", provider, message), nil, details)
	case status == http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s rate limit exceeded", provider), nil, details)
	case status >= 500:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s server error: %s", provider, message), nil, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("%s error (%d): %s", provider, status, message), nil, details)
	}
}

// wrapTransportError keeps AppErrors from BaseClient intact and wraps
// anything else.
func wrapTransportError(provider string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable,
		fmt.Sprintf("%s request failed: %v", provider, err), err)
}
