package dispatch

import "fmt"

// FailureKind classifies a failed DispatchResult.
type FailureKind string

const (
	KindPolicyRejection FailureKind = "policy_rejection"
	KindProviderError   FailureKind = "provider_error"
	KindTimeout         FailureKind = "timeout"
	KindCancelled       FailureKind = "cancelled"
)

// DispatchResult is the outcome for one recipient in one run.
type DispatchResult struct {
	RecipientID       string      `json:"recipient_id"`
	Email             string      `json:"email"`
	Success           bool        `json:"success"`
	Reason            string      `json:"reason,omitempty"`
	Kind              FailureKind `json:"kind,omitempty"`
	ProviderMessageID string      `json:"provider_message_id,omitempty"`
}

// RunOutcome is the terminal state of a batch run.
type RunOutcome string

const (
	OutcomeSuccess        RunOutcome = "success"
	OutcomePartialFailure RunOutcome = "partial_failure"
	OutcomeTotalFailure   RunOutcome = "total_failure"
)

// BatchReport aggregates a run. SentCount + len(Failures) == TotalCount, and
// Failures keep the input order of their recipients.
type BatchReport struct {
	SentCount  int              `json:"sent_count"`
	TotalCount int              `json:"total_count"`
	Failures   []DispatchResult `json:"failures"`
	Outcome    RunOutcome       `json:"outcome"`
	Summary    string           `json:"summary"`
}

// NewBatchReport folds per-recipient results into a classified report.
func NewBatchReport(results []DispatchResult) *BatchReport {
	report := &BatchReport{
		TotalCount: len(results),
		Failures:   []DispatchResult{},
	}
	for _, r := range results {
		if r.Success {
			report.SentCount++
		} else {
			report.Failures = append(report.Failures, r)
		}
	}

	failed := len(report.Failures)
	switch {
	case failed == 0:
		report.Outcome = OutcomeSuccess
		report.Summary = fmt.Sprintf("%d email(s) sent", report.SentCount)
	case report.SentCount == 0:
		report.Outcome = OutcomeTotalFailure
		report.Summary = fmt.Sprintf("no emails sent: %d failure(s)", failed)
	default:
		report.Outcome = OutcomePartialFailure
		report.Summary = fmt.Sprintf("%d email(s) sent, %d failure(s)", report.SentCount, failed)
	}
	return report
}

// Err returns the aggregate *BatchFailedError for a total failure, else nil.
func (r *BatchReport) Err() error {
	if r.Outcome != OutcomeTotalFailure {
		return nil
	}
	return &BatchFailedError{Failed: len(r.Failures), Total: r.TotalCount}
}
