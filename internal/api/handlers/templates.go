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

// TemplateLister lists a user's templates ordered by stage.
type TemplateLister interface {
	ListByUser(ctx context.Context, userID string) ([]types.Template, error)
}

// TemplateListResponse wraps the template list.
type TemplateListResponse struct {
	Templates []types.Template `json:"templates"`
}

// TestSendRequest is the body of POST .../templates/{templateID}/test.
type TestSendRequest struct {
	To string `json:"to" validate:"required"`
}

// TestSendResponse reports a delivered test email.
type TestSendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
}

// TemplateHandler serves template listing and test sends.
type TemplateHandler struct {
	templates TemplateLister
	svc       DispatchService
	validator *core.Validator
	logger    *slog.Logger
}

// NewTemplateHandler creates a TemplateHandler.
func NewTemplateHandler(templates TemplateLister, svc DispatchService, v *core.Validator, l *slog.Logger) *TemplateHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TemplateHandler{templates: templates, svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the template endpoints on r.
func (h *TemplateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users/{userID}/templates", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/{templateID}/test", h.Test)
	})
}

// List handles GET /v1/users/{userID}/templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, TemplateListResponse{Templates: templates})
}

// Test handles POST /v1/users/{userID}/templates/{templateID}/test. The
// template is sent with the user's saved credential and delivery defaults
// for every variable.
func (h *TemplateHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req TestSendRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.svc.SendTemplateTest(r.Context(),
		chi.URLParam(r, "userID"),
		chi.URLParam(r, "templateID"),
		req.To,
	)
	if err != nil {
		core.Error(w, r, upstreamError(err))
		return
	}

	core.JSON(w, r, http.StatusOK, TestSendResponse{
		Success:   true,
		Message:   "Test email sent",
		Recipient: result.Recipient,
	})
}

// upstreamError gives provider failures a stable upstream code and the
// provider's message; other errors pass through.
func upstreamError(err error) error {
	var perr *dispatch.ProviderError
	if !errors.As(err, &perr) {
		return err
	}
	code := types.ErrCodeUpstreamEmailProvider
	if perr.Timeout() {
		code = types.ErrCodeUpstreamTimeout
	}
	return types.NewAppErrorWithDetails(code, "Failed to send email: "+perr.Reason(), err,
		map[string]any{"provider": perr.Provider})
}
