package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"relaunch/internal/types"
)

// StubEmailSender logs each send and returns a predictable message id. It
// lets the service boot locally without provider accounts.
type StubEmailSender struct {
	provider types.EmailProvider
	logger   *slog.Logger
	seq      atomic.Int64
}

// NewStubEmailSender creates a stub for provider p.
func NewStubEmailSender(p types.EmailProvider, logger *slog.Logger) *StubEmailSender {
	return &StubEmailSender{provider: p, logger: logger}
}

// Provider implements EmailSender.
func (s *StubEmailSender) Provider() types.EmailProvider {
	return s.provider
}

// Send implements EmailSender.
func (s *StubEmailSender) Send(ctx context.Context, _ types.SecretString, msg types.OutboundEmail) (string, error) {
	n := s.seq.Add(1)
	s.logger.InfoContext(ctx, "stub: Send called",
		"provider", s.provider,
		"to", types.RedactEmail(msg.To.Address),
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
	)
	return fmt.Sprintf("stub_%s_%d", s.provider, n), nil
}

var _ EmailSender = (*StubEmailSender)(nil)
