package dispatch

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"relaunch/internal/external"
	"relaunch/internal/types"
)

// Deps are the collaborators of a Service. Publisher may be nil, which
// disables EnqueueBatch.
type Deps struct {
	Credentials CredentialStore
	Templates   TemplateStore
	Recipients  RecipientStore
	History     HistoryStore
	Senders     SenderLookup
	Publisher   JobPublisher
	Policy      *DomainPolicy
	Layout      *Layout
	Selection   SelectionPolicy
	Metrics     Metrics
	Logger      types.Logger
	Clock       func() time.Time
	NewID       func() string
}

// Options tune a Service.
type Options struct {
	From            types.EmailAddress
	Workers         int
	ProviderTimeout time.Duration
}

// Service is the dispatch orchestrator.
type Service struct {
	deps     Deps
	opts     Options
	renderer Renderer
	audit    *AuditLogger
}

// NewService wires a Service, filling optional collaborators with defaults.
func NewService(deps Deps, opts Options) *Service {
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = types.NewSlogAdapter(nil)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Selection == nil {
		deps.Selection = PreferWithProject{}
	}
	if deps.Layout == nil {
		deps.Layout = NewLayout(true, deps.Clock)
	}
	if deps.Policy == nil {
		deps.Policy = NewDomainPolicy(nil)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Service{
		deps:     deps,
		opts:     opts,
		renderer: NewRenderer(DeliveryDefaults),
		audit:    NewAuditLogger(deps.History, deps.Metrics, deps.Logger),
	}
}

// DirectRequest is a single send with caller-supplied credential and
// content. ProspectID and UserID together enable the history write.
type DirectRequest struct {
	Provider   string
	APIKey     types.SecretString
	To         string
	Subject    string
	HTML       string
	Name       string
	Project    string
	Company    string
	ProspectID string
	TemplateID string
	UserID     string
}

// DirectResult echoes the resolved substitution values of a sent message.
type DirectResult struct {
	Recipient         string `json:"recipient"`
	Name              string `json:"name"`
	Project           string `json:"project"`
	Company           string `json:"company"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// Send validates and sends one message. Required fields are checked in a
// fixed order so the first missing one is reported.
func (s *Service) Send(ctx context.Context, req DirectRequest) (*DirectResult, error) {
	switch {
	case strings.TrimSpace(req.Provider) == "":
		return nil, missingField("provider", "Email provider is required")
	case strings.TrimSpace(req.APIKey.Unmask()) == "":
		return nil, missingField("api_key", "API key is required")
	case req.Subject == "":
		return nil, missingField("subject", "Subject is required")
	case req.HTML == "":
		return nil, missingField("html", "HTML content is required")
	}

	provider, ok := types.ParseEmailProvider(req.Provider)
	if !ok {
		return nil, &ValidationError{Code: types.ErrCodeValidationInvalidProvider, Field: "provider", Message: "Invalid email provider"}
	}
	sender, err := s.deps.Senders.Sender(provider)
	if err != nil {
		return nil, &ValidationError{Code: types.ErrCodeValidationInvalidProvider, Field: "provider", Message: "Invalid email provider"}
	}
	if err := validateAddress(req.To); err != nil {
		return nil, err
	}
	if err := s.deps.Policy.Check(provider, req.To); err != nil {
		return nil, err
	}

	fields := Fields{Name: req.Name, Project: req.Project, Company: req.Company}
	rendered := s.renderer.RenderText(req.Subject, req.HTML, fields)
	msgID, err := s.transmit(ctx, sender, req.APIKey, types.EmailAddress{Address: req.To, Name: strings.TrimSpace(req.Name)}, rendered, req.ProspectID)
	if err != nil {
		s.log(ctx).Warn("direct send failed",
			"provider", provider,
			"to", types.RedactEmail(req.To),
			"error", err.Error(),
		)
		return nil, err
	}

	if req.ProspectID != "" && req.UserID != "" {
		_ = s.audit.Record(context.WithoutCancel(ctx), types.HistoryEntry{
			ProspectID: req.ProspectID,
			TemplateID: req.TemplateID,
			UserID:     req.UserID,
			Status:     types.HistoryStatusSent,
			SentAt:     s.deps.Clock().UTC(),
		})
	}

	resolved := s.renderer.Resolve(fields)
	return &DirectResult{
		Recipient:         req.To,
		Name:              resolved.Name,
		Project:           resolved.Project,
		Company:           resolved.Company,
		ProviderMessageID: msgID,
	}, nil
}

// SendTemplateTest sends one of the user's templates to the address to,
// using delivery defaults for every variable. No history is written.
func (s *Service) SendTemplateTest(ctx context.Context, userID, templateID, to string) (*DirectResult, error) {
	cred, sender, err := s.loadCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.deps.Templates.GetByID(ctx, userID, templateID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load template", err)
	}
	if tmpl == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundTemplate, "template not found", nil)
	}
	if err := validateAddress(to); err != nil {
		return nil, err
	}
	if err := s.deps.Policy.Check(cred.Provider, to); err != nil {
		return nil, err
	}

	rendered := s.renderer.RenderText(tmpl.Subject, tmpl.Body, Fields{})
	msgID, err := s.transmit(ctx, sender, cred.APIKey, types.EmailAddress{Address: to}, rendered, tmpl.ID)
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("template test sent",
		"user_id", userID,
		"template_id", tmpl.ID,
		"provider", cred.Provider,
		"to", types.RedactEmail(to),
	)
	resolved := s.renderer.Resolve(Fields{})
	return &DirectResult{
		Recipient:         to,
		Name:              resolved.Name,
		Project:           resolved.Project,
		Company:           resolved.Company,
		ProviderMessageID: msgID,
	}, nil
}

// transmit wraps the rendered body in the layout and calls the adapter
// under the provider timeout. Every adapter failure becomes *ProviderError.
func (s *Service) transmit(ctx context.Context, sender external.EmailSender, apiKey types.SecretString, to types.EmailAddress, rendered types.RenderedMessage, ref string) (string, error) {
	msg := types.OutboundEmail{
		To:          to,
		From:        s.opts.From,
		Subject:     rendered.Subject,
		HTML:        s.deps.Layout.Wrap(rendered.HTMLBody),
		ReferenceID: ref,
	}

	callCtx := ctx
	if s.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.ProviderTimeout)
		defer cancel()
	}

	start := time.Now()
	msgID, err := sender.Send(callCtx, apiKey, msg)
	latency := time.Since(start)

	if err != nil {
		perr := &ProviderError{Provider: sender.Provider(), Err: err}
		result := "failure"
		if perr.Timeout() {
			result = "timeout"
		}
		s.deps.Metrics.RecordDispatch(ctx, sender.Provider(), result, latency)
		return "", perr
	}
	s.deps.Metrics.RecordDispatch(ctx, sender.Provider(), "success", latency)
	return msgID, nil
}

// loadCredential reads the user's credential and resolves its sender.
func (s *Service) loadCredential(ctx context.Context, userID string) (*types.EmailCredential, external.EmailSender, error) {
	cred, err := s.deps.Credentials.GetCredential(ctx, userID)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load email settings", err)
	}
	if !cred.HasKey() {
		return nil, nil, &ValidationError{
			Code:    types.ErrCodeValidationNoCredential,
			Field:   "api_key",
			Message: "an API key is required before sending emails",
		}
	}
	sender, err := s.deps.Senders.Sender(cred.Provider)
	if err != nil {
		return nil, nil, &ValidationError{Code: types.ErrCodeValidationInvalidProvider, Field: "provider", Message: "Invalid email provider"}
	}
	return cred, sender, nil
}

func (s *Service) log(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.deps.Logger
}

func validateAddress(to string) error {
	if strings.TrimSpace(to) == "" {
		return missingField("to", "Recipient email is required")
	}
	if addr, err := mail.ParseAddress(to); err != nil || addr.Address != strings.TrimSpace(to) {
		return &ValidationError{Code: types.ErrCodeValidationInvalidEmail, Field: "to", Message: "Invalid recipient email"}
	}
	return nil
}

// isCancellation reports whether err came from the run's own cancellation
// rather than a provider deadline.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}
