package external

import (
	"context"

	"relaunch/internal/types"
)

// EmailSender transmits one rendered message through one provider. The API
// key is supplied per call because credentials belong to users, not to the
// process.
type EmailSender interface {
	// Provider returns the tag this sender serves.
	Provider() types.EmailProvider

	// Send transmits msg and returns the provider's message id. Failures are
	// *types.AppError values carrying an upstream_* or email_blocked code.
	Send(ctx context.Context, apiKey types.SecretString, msg types.OutboundEmail) (providerMsgID string, err error)
}
