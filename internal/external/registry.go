package external

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"relaunch/internal/config"
	"relaunch/internal/security"
	"relaunch/internal/types"
)

// SenderRegistry maps provider tags to senders. A user's stored provider tag
// selects the sender for every message of a run.
type SenderRegistry struct {
	senders map[types.EmailProvider]EmailSender
}

// NewSenderRegistryFrom builds a registry from explicit senders. A later
// sender for the same provider replaces an earlier one.
func NewSenderRegistryFrom(senders ...EmailSender) *SenderRegistry {
	r := &SenderRegistry{senders: make(map[types.EmailProvider]EmailSender, len(senders))}
	for _, s := range senders {
		r.senders[s.Provider()] = s
	}
	return r
}

// NewSenderRegistry builds the production senders from cfg. With
// EMAIL_STUB_MODE enabled every provider is served by a StubEmailSender.
func NewSenderRegistry(cfg config.EmailConfig, logger *slog.Logger) (*SenderRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.StubMode {
		logger.Info("initializing email senders in STUB mode")
		stubLogger := logger.With("mode", "stub")
		stubs := make([]EmailSender, 0, len(types.AllEmailProviders))
		for _, p := range types.AllEmailProviders {
			stubs = append(stubs, NewStubEmailSender(p, stubLogger))
		}
		return NewSenderRegistryFrom(stubs...), nil
	}

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	if cfg.EgressGuard {
		httpClient = security.NewGuardedHTTPClient(cfg.ProviderTimeout)
	}

	sendgrid := NewSendGridClient(NewBaseClient(httpClient, "sendgrid", DefaultRetryPolicy()), cfg.SendGridBaseURL)
	mailersend := NewMailerSendClient(NewBaseClient(httpClient, "mailersend", DefaultRetryPolicy()), cfg.MailerSendBaseURL)
	resendClient, err := NewResendClient(httpClient, cfg.ResendBaseURL)
	if err != nil {
		return nil, err
	}

	logger.Info("initializing email senders",
		"providers", []types.EmailProvider{types.ProviderSendGrid, types.ProviderMailerSend, types.ProviderResend},
		"timeout", cfg.ProviderTimeout,
		"egress_guard", cfg.EgressGuard,
	)
	return NewSenderRegistryFrom(sendgrid, mailersend, resendClient), nil
}

// Sender returns the sender registered for p.
func (r *SenderRegistry) Sender(p types.EmailProvider) (EmailSender, error) {
	s, ok := r.senders[p]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidProvider,
			fmt.Sprintf("Invalid email provider: %q", p), nil)
	}
	return s, nil
}

// Providers lists the registered provider tags in sorted order.
func (r *SenderRegistry) Providers() []types.EmailProvider {
	out := make([]types.EmailProvider, 0, len(r.senders))
	for p := range r.senders {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
