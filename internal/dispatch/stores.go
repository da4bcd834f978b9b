package dispatch

import (
	"context"
	"time"

	"relaunch/internal/external"
	"relaunch/internal/types"
)

// CredentialStore reads a user's provider credential. It returns nil, nil
// when the user has none.
type CredentialStore interface {
	GetCredential(ctx context.Context, userID string) (*types.EmailCredential, error)
}

// TemplateStore reads templates owned by a user. FirstByStage returns nil,
// nil when the user has no templates.
type TemplateStore interface {
	FirstByStage(ctx context.Context, userID string) (*types.Template, error)
	GetByID(ctx context.Context, userID, templateID string) (*types.Template, error)
}

// RecipientStore reads a user's prospects in a stable order.
type RecipientStore interface {
	ListByUser(ctx context.Context, userID string) ([]types.Recipient, error)
}

// HistoryStore is the append-only delivery history.
type HistoryStore interface {
	Append(ctx context.Context, entry *types.HistoryEntry) error
}

// SenderLookup resolves the sender for a provider tag.
type SenderLookup interface {
	Sender(p types.EmailProvider) (external.EmailSender, error)
}

// JobPublisher enqueues an asynchronous batch run.
type JobPublisher interface {
	PublishDispatchJob(ctx context.Context, job types.DispatchJob) error
}

// Metrics records dispatch telemetry. Implementations must not block the
// send path on failure.
type Metrics interface {
	RecordDispatch(ctx context.Context, provider types.EmailProvider, result string, latency time.Duration)
	RecordBatch(ctx context.Context, outcome RunOutcome, sent, total int)
	RecordAuditFailure(ctx context.Context)
}

// NoopMetrics discards all metrics.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(context.Context, types.EmailProvider, string, time.Duration) {}
func (NoopMetrics) RecordBatch(context.Context, RunOutcome, int, int)                          {}
func (NoopMetrics) RecordAuditFailure(context.Context)                                         {}
