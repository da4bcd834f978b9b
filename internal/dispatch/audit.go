package dispatch

import (
	"context"

	"relaunch/internal/types"
)

// AuditLogger appends one history entry per confirmed send. Write failures
// are logged and counted, never propagated into the send outcome.
type AuditLogger struct {
	store   HistoryStore
	metrics Metrics
	logger  types.Logger
}

// NewAuditLogger creates an AuditLogger over store.
func NewAuditLogger(store HistoryStore, metrics Metrics, logger types.Logger) *AuditLogger {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &AuditLogger{store: store, metrics: metrics, logger: logger}
}

// Record appends entry. The returned *AuditWriteError is informational.
func (a *AuditLogger) Record(ctx context.Context, entry types.HistoryEntry) error {
	if entry.Status == "" {
		entry.Status = types.HistoryStatusSent
	}
	if err := a.store.Append(ctx, &entry); err != nil {
		a.metrics.RecordAuditFailure(ctx)
		a.logger.Error("failed to record delivery history",
			"prospect_id", entry.ProspectID,
			"template_id", entry.TemplateID,
			"user_id", entry.UserID,
			"error", err.Error(),
		)
		return &AuditWriteError{ProspectID: entry.ProspectID, Err: err}
	}
	return nil
}
