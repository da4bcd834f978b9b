package dispatch

import (
	"context"
	"errors"

	"relaunch/internal/external"
	"relaunch/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchRequest starts a run over a user's prospects. An empty Mode means
// DispatchModeAll.
type BatchRequest struct {
	UserID string
	Mode   types.DispatchMode
}

// runSnapshot is the read-only state shared by every recipient of a run.
type runSnapshot struct {
	userID   string
	template types.Template
	cred     types.EmailCredential
	sender   external.EmailSender
	targets  []types.Recipient
}

// RunBatch gates, sends and reports one run. Gate failures return a
// *ValidationError with no provider call made. Per-recipient failures are
// recorded in the report; a run with nothing sent also returns a
// *BatchFailedError alongside the report.
func (s *Service) RunBatch(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	snap, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]DispatchResult, len(snap.targets))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i, r := range snap.targets {
		if ctx.Err() != nil {
			results[i] = cancelled(r)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = cancelled(r)
				return nil
			}
			results[i] = s.deliver(ctx, snap, r)
			return nil
		})
	}
	_ = g.Wait()

	report := NewBatchReport(results)
	s.deps.Metrics.RecordBatch(ctx, report.Outcome, report.SentCount, report.TotalCount)
	s.log(ctx).Info("batch dispatch completed",
		"user_id", snap.userID,
		"template_id", snap.template.ID,
		"provider", snap.cred.Provider,
		"outcome", report.Outcome,
		"sent", report.SentCount,
		"total", report.TotalCount,
	)
	return report, report.Err()
}

// EnqueueBatch runs the gate and publishes the run as a DispatchJob for the
// dispatch worker. It returns the job id.
func (s *Service) EnqueueBatch(ctx context.Context, req BatchRequest) (string, error) {
	if s.deps.Publisher == nil {
		return "", types.NewAppError(types.ErrCodeInternalQueue, "asynchronous dispatch is not configured", nil)
	}
	snap, err := s.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	job := types.DispatchJob{
		JobID:       s.newID(),
		UserID:      snap.userID,
		Mode:        modeOrDefault(req.Mode),
		RequestedAt: s.deps.Clock().UTC(),
		TraceID:     types.GetRequestID(ctx),
	}
	if err := s.deps.Publisher.PublishDispatchJob(ctx, job); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalQueue, "failed to enqueue dispatch job", err)
	}
	s.log(ctx).Info("batch dispatch enqueued", "job_id", job.JobID, "user_id", job.UserID, "mode", job.Mode)
	return job.JobID, nil
}

// prepare evaluates the all-or-nothing gate in order (template, credential,
// prospects, eligible prospects) and selects the run's recipients.
func (s *Service) prepare(ctx context.Context, req BatchRequest) (*runSnapshot, error) {
	if req.UserID == "" {
		return nil, missingField("user_id", "User ID is required")
	}
	mode := modeOrDefault(req.Mode)
	if !mode.Valid() {
		return nil, &ValidationError{Code: types.ErrCodeValidationInvalidMode, Field: "mode", Message: "mode must be \"all\" or \"single\""}
	}

	tmpl, err := s.deps.Templates.FirstByStage(ctx, req.UserID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load templates", err)
	}
	if tmpl == nil {
		return nil, &ValidationError{Code: types.ErrCodeValidationNoTemplate, Message: "no template found; create a template before sending emails"}
	}

	cred, sender, err := s.loadCredential(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	all, err := s.deps.Recipients.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load prospects", err)
	}
	if len(all) == 0 {
		return nil, &ValidationError{Code: types.ErrCodeValidationNoRecipients, Message: "no prospects found; add at least one prospect"}
	}
	eligible := EligibleRecipients(all)
	if len(eligible) == 0 {
		return nil, &ValidationError{Code: types.ErrCodeValidationNoEligible, Message: "no valid prospects found; prospects need a name and an email"}
	}

	targets := eligible
	if mode == types.DispatchModeSingle {
		pick, _ := s.deps.Selection.Select(eligible)
		targets = []types.Recipient{pick}
	}

	return &runSnapshot{
		userID:   req.UserID,
		template: *tmpl,
		cred:     *cred,
		sender:   sender,
		targets:  targets,
	}, nil
}

// deliver runs one recipient through policy, render, layout, send and
// audit. It never returns an error: every outcome is a DispatchResult.
func (s *Service) deliver(ctx context.Context, snap *runSnapshot, r types.Recipient) DispatchResult {
	result := DispatchResult{RecipientID: r.ID, Email: r.Email}

	if err := s.deps.Policy.Check(snap.cred.Provider, r.Email); err != nil {
		result.Kind = KindPolicyRejection
		result.Reason = err.Error()
		s.log(ctx).Warn("recipient rejected by domain policy",
			"prospect_id", r.ID,
			"to", types.RedactEmail(r.Email),
			"provider", snap.cred.Provider,
		)
		return result
	}

	rendered := s.renderer.Render(snap.template, r)
	to := types.EmailAddress{Address: r.Email, Name: r.Name}
	msgID, err := s.transmit(ctx, snap.sender, snap.cred.APIKey, to, rendered, r.ID)
	if err != nil {
		var perr *ProviderError
		switch {
		case isCancellation(ctx, err):
			result.Kind = KindCancelled
			result.Reason = "cancelled"
		case errors.As(err, &perr) && perr.Timeout():
			result.Kind = KindTimeout
			result.Reason = "timeout"
		default:
			result.Kind = KindProviderError
			result.Reason = err.Error()
		}
		s.log(ctx).Warn("send failed",
			"prospect_id", r.ID,
			"to", types.RedactEmail(r.Email),
			"provider", snap.cred.Provider,
			"reason", result.Reason,
		)
		return result
	}

	result.Success = true
	result.ProviderMessageID = msgID
	if r.ID != "" {
		_ = s.audit.Record(context.WithoutCancel(ctx), types.HistoryEntry{
			ProspectID: r.ID,
			TemplateID: snap.template.ID,
			UserID:     snap.userID,
			Status:     types.HistoryStatusSent,
			SentAt:     s.deps.Clock().UTC(),
		})
	}
	return result
}

func cancelled(r types.Recipient) DispatchResult {
	return DispatchResult{RecipientID: r.ID, Email: r.Email, Kind: KindCancelled, Reason: "cancelled"}
}

func modeOrDefault(m types.DispatchMode) types.DispatchMode {
	if m == "" {
		return types.DispatchModeAll
	}
	return m
}

func (s *Service) newID() string {
	if s.deps.NewID != nil {
		return s.deps.NewID()
	}
	return uuid.NewString()
}
