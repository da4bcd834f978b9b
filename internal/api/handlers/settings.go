package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"relaunch/internal/core"
	"relaunch/internal/types"
)

// SettingsRepo reads and writes a user's email credential.
// Mirrors the concrete db.SettingsRepository methods used by this handler.
type SettingsRepo interface {
	GetCredential(ctx context.Context, userID string) (*types.EmailCredential, error)
	SaveCredential(ctx context.Context, cred *types.EmailCredential) error
}

// SaveEmailSettingsRequest is the body of PUT /v1/users/{userID}/settings/email.
type SaveEmailSettingsRequest struct {
	Provider string `json:"provider" validate:"required,email_provider"`
	APIKey   string `json:"api_key" validate:"required"`
}

// EmailSettingsResponse never carries the raw key.
type EmailSettingsResponse struct {
	Configured   bool                `json:"configured"`
	Provider     types.EmailProvider `json:"provider,omitempty"`
	APIKeyMasked string              `json:"api_key_masked,omitempty"`
	UpdatedAt    *time.Time          `json:"updated_at,omitempty"`
}

// SettingsHandler serves the per-user email settings.
type SettingsHandler struct {
	repo      SettingsRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(repo SettingsRepo, v *core.Validator, l *slog.Logger) *SettingsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SettingsHandler{repo: repo, validator: v, logger: l}
}

// RegisterRoutes mounts the settings endpoints on r.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users/{userID}/settings/email", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Save)
	})
}

// Get handles GET /v1/users/{userID}/settings/email.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cred, err := h.repo.GetCredential(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, settingsView(cred))
}

// Save handles PUT /v1/users/{userID}/settings/email. It is the only path
// that changes a stored credential; sends never write it back.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveEmailSettingsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	provider, _ := types.ParseEmailProvider(req.Provider)
	cred := &types.EmailCredential{
		UserID:   chi.URLParam(r, "userID"),
		Provider: provider,
		APIKey:   types.SecretString(strings.TrimSpace(req.APIKey)),
	}
	if err := h.repo.SaveCredential(r.Context(), cred); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "email settings saved",
		"user_id", cred.UserID,
		"provider", cred.Provider,
	)
	core.JSON(w, r, http.StatusOK, settingsView(cred))
}

func settingsView(cred *types.EmailCredential) EmailSettingsResponse {
	if cred == nil {
		return EmailSettingsResponse{}
	}
	resp := EmailSettingsResponse{
		Configured:   cred.HasKey(),
		Provider:     cred.Provider,
		APIKeyMasked: types.MaskSecret(cred.APIKey),
	}
	if !cred.UpdatedAt.IsZero() {
		updated := cred.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
