// Package handlers contains the HTTP handler implementations for the
// dispatch API.
//
// This file implements the send endpoints:
//   - POST /v1/dispatch, the direct single-recipient send
//   - POST /v1/users/{userID}/dispatch, the batch run (sync or queued)
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relaunch/internal/core"
	"relaunch/internal/dispatch"
	"relaunch/internal/types"
)

// DispatchService is the orchestrator surface used by the send handlers.
// It is satisfied by *dispatch.Service.
type DispatchService interface {
	Send(ctx context.Context, req dispatch.DirectRequest) (*dispatch.DirectResult, error)
	SendTemplateTest(ctx context.Context, userID, templateID, to string) (*dispatch.DirectResult, error)
	RunBatch(ctx context.Context, req dispatch.BatchRequest) (*dispatch.BatchReport, error)
	EnqueueBatch(ctx context.Context, req dispatch.BatchRequest) (string, error)
}

// DirectSendRequest is the body of POST /v1/dispatch. The email_provider
// and email_api_key aliases are accepted for older clients; the canonical
// field wins when both are present.
type DirectSendRequest struct {
	Provider      string `json:"provider"`
	EmailProvider string `json:"email_provider"`
	APIKey        string `json:"api_key"`
	EmailAPIKey   string `json:"email_api_key"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	HTML          string `json:"html"`
	Name          string `json:"name"`
	Project       string `json:"project"`
	Company       string `json:"company"`
	ProspectID    string `json:"prospect_id"`
	TemplateID    string `json:"template_id"`
	UserID        string `json:"user_id"`
}

// DirectSendResponse is the success body of POST /v1/dispatch.
type DirectSendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Name      string `json:"name"`
	Project   string `json:"project"`
	Company   string `json:"company"`
}

// DirectSendFailure is the error body of POST /v1/dispatch.
type DirectSendFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// BatchDispatchRequest is the optional body of POST /v1/users/{userID}/dispatch.
type BatchDispatchRequest struct {
	Mode  string `json:"mode" validate:"omitempty,dispatch_mode"`
	Async bool   `json:"async"`
}

// BatchQueuedResponse is returned when a batch run is handed to the worker.
type BatchQueuedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// DispatchHandler serves the send endpoints.
type DispatchHandler struct {
	svc       DispatchService
	validator *core.Validator
	logger    *slog.Logger
}

// NewDispatchHandler creates a DispatchHandler.
func NewDispatchHandler(svc DispatchService, v *core.Validator, l *slog.Logger) *DispatchHandler {
	if l == nil {
		l = slog.Default()
	}
	return &DispatchHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the send endpoints on r.
func (h *DispatchHandler) RegisterRoutes(r chi.Router) {
	r.Post("/dispatch", h.Direct)
	r.Post("/users/{userID}/dispatch", h.Batch)
}

// Direct handles POST /v1/dispatch. It keeps the {success, error} envelope
// of the settings UI contract instead of the standard error body: every
// failure is a 400, and send failures are prefixed "Failed to send email:".
func (h *DispatchHandler) Direct(w http.ResponseWriter, r *http.Request) {
	var req DirectSendRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		h.directFailure(w, r, err)
		return
	}

	result, err := h.svc.Send(r.Context(), dispatch.DirectRequest{
		Provider:   firstNonEmpty(req.Provider, req.EmailProvider),
		APIKey:     types.SecretString(firstNonEmpty(req.APIKey, req.EmailAPIKey)),
		To:         req.To,
		Subject:    req.Subject,
		HTML:       req.HTML,
		Name:       req.Name,
		Project:    req.Project,
		Company:    req.Company,
		ProspectID: req.ProspectID,
		TemplateID: req.TemplateID,
		UserID:     req.UserID,
	})
	if err != nil {
		h.directFailure(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, DirectSendResponse{
		Success:   true,
		Message:   "Email sent successfully",
		Recipient: result.Recipient,
		Name:      result.Name,
		Project:   result.Project,
		Company:   result.Company,
	})
}

func (h *DispatchHandler) directFailure(w http.ResponseWriter, r *http.Request, err error) {
	resp := DirectSendFailure{Success: false}

	var (
		verr   *dispatch.ValidationError
		appErr *types.AppError
	)
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Message
		resp.Details = string(verr.Code)
	case errors.As(err, &appErr) && appErr.Code.HTTPStatus() == http.StatusBadRequest:
		resp.Error = appErr.Message
		resp.Details = string(appErr.Code)
	default:
		resp.Error = "Failed to send email: " + sendFailureReason(err)
		if errors.As(err, &appErr) {
			resp.Details = string(appErr.Code)
		}
	}
	core.JSON(w, r, http.StatusBadRequest, resp)
}

// Batch handles POST /v1/users/{userID}/dispatch.
//
// Gate failures (no template, credential, recipients or eligible
// recipients) answer 400 before anything is sent. A completed run answers
// 200 with the BatchReport, except a run where nothing was sent, which is a
// 502 carrying the report in details. With async=true the run is queued and
// the handler answers 202 with the job id.
func (h *DispatchHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchDispatchRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	batch := dispatch.BatchRequest{
		UserID: chi.URLParam(r, "userID"),
		Mode:   types.DispatchMode(req.Mode),
	}

	if req.Async {
		jobID, err := h.svc.EnqueueBatch(r.Context(), batch)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.JSON(w, r, http.StatusAccepted, BatchQueuedResponse{JobID: jobID, Status: "queued"})
		return
	}

	report, err := h.svc.RunBatch(r.Context(), batch)
	if err != nil {
		if report != nil {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeDispatchTotalFailure,
				report.Summary,
				err,
				map[string]any{"report": report},
			))
			return
		}
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, report)
}

// sendFailureReason is the provider's message for a failed send, or
// "timeout" when the provider did not answer in time.
func sendFailureReason(err error) string {
	var perr *dispatch.ProviderError
	if errors.As(err, &perr) {
		return perr.Reason()
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
