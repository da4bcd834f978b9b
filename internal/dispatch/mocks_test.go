package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"relaunch/internal/external"
	"relaunch/internal/types"
)

// --- Mock stores ---

type mockCredentialStore struct {
	mock.Mock
}

func (m *mockCredentialStore) GetCredential(ctx context.Context, userID string) (*types.EmailCredential, error) {
	args := m.Called(ctx, userID)
	if c := args.Get(0); c != nil {
		return c.(*types.EmailCredential), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTemplateStore struct {
	mock.Mock
}

func (m *mockTemplateStore) FirstByStage(ctx context.Context, userID string) (*types.Template, error) {
	args := m.Called(ctx, userID)
	if t := args.Get(0); t != nil {
		return t.(*types.Template), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTemplateStore) GetByID(ctx context.Context, userID, templateID string) (*types.Template, error) {
	args := m.Called(ctx, userID, templateID)
	if t := args.Get(0); t != nil {
		return t.(*types.Template), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRecipientStore struct {
	mock.Mock
}

func (m *mockRecipientStore) ListByUser(ctx context.Context, userID string) ([]types.Recipient, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]types.Recipient), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockHistoryStore struct {
	mock.Mock
}

func (m *mockHistoryStore) Append(ctx context.Context, entry *types.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishDispatchJob(ctx context.Context, job types.DispatchJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// --- Fake sender ---

// fakeSender records every message it is asked to send. failFor maps a
// recipient address to the error returned for it.
type fakeSender struct {
	provider types.EmailProvider
	failFor  map[string]error
	block    bool

	mu   sync.Mutex
	sent []types.OutboundEmail
}

func (f *fakeSender) Provider() types.EmailProvider { return f.provider }

func (f *fakeSender) Send(ctx context.Context, _ types.SecretString, msg types.OutboundEmail) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if err := f.failFor[msg.To.Address]; err != nil {
		return "", err
	}
	return "msg_" + msg.To.Address, nil
}

func (f *fakeSender) calls() []types.OutboundEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.OutboundEmail(nil), f.sent...)
}

type fakeSenders map[types.EmailProvider]external.EmailSender

func (f fakeSenders) Sender(p types.EmailProvider) (external.EmailSender, error) {
	if s, ok := f[p]; ok {
		return s, nil
	}
	return nil, types.NewAppError(types.ErrCodeValidationInvalidProvider, "Invalid email provider", nil)
}

// --- Recording metrics ---

type recordingMetrics struct {
	mu            sync.Mutex
	dispatch      map[string]int
	batches       []RunOutcome
	auditFailures int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{dispatch: make(map[string]int)}
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, _ types.EmailProvider, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch[result]++
}

func (m *recordingMetrics) RecordBatch(_ context.Context, outcome RunOutcome, _, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, outcome)
}

func (m *recordingMetrics) RecordAuditFailure(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditFailures++
}

// --- Harness ---

type harness struct {
	svc        *Service
	creds      *mockCredentialStore
	templates  *mockTemplateStore
	recipients *mockRecipientStore
	history    *mockHistoryStore
	publisher  *mockPublisher
	sender     *fakeSender
	metrics    *recordingMetrics
}

type harnessOption func(*Deps, *Options)

func withTimeout(d time.Duration) harnessOption {
	return func(_ *Deps, o *Options) { o.ProviderTimeout = d }
}

func withoutPublisher() harnessOption {
	return func(d *Deps, _ *Options) { d.Publisher = nil }
}

func newHarness(provider types.EmailProvider, opts ...harnessOption) *harness {
	h := &harness{
		creds:      new(mockCredentialStore),
		templates:  new(mockTemplateStore),
		recipients: new(mockRecipientStore),
		history:    new(mockHistoryStore),
		publisher:  new(mockPublisher),
		sender:     &fakeSender{provider: provider, failFor: map[string]error{}},
		metrics:    newRecordingMetrics(),
	}
	deps := Deps{
		Credentials: h.creds,
		Templates:   h.templates,
		Recipients:  h.recipients,
		History:     h.history,
		Senders:     fakeSenders{provider: h.sender},
		Publisher:   h.publisher,
		Policy:      NewDomainPolicy(map[types.EmailProvider][]string{types.ProviderMailerSend: {"gmail.com"}}),
		Metrics:     h.metrics,
		Logger:      types.NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil))),
		Clock:       fixedClock,
		NewID:       func() string { return "job_1" },
	}
	options := Options{
		From:    types.EmailAddress{Address: "info@relaunch.test", Name: "ReLaunch App"},
		Workers: 4,
	}
	for _, opt := range opts {
		opt(&deps, &options)
	}
	h.svc = NewService(deps, options)
	return h
}

func (h *harness) givenCredential(userID string) {
	h.creds.On("GetCredential", mock.Anything, userID).Return(&types.EmailCredential{
		UserID:   userID,
		Provider: h.sender.provider,
		APIKey:   "key_123",
	}, nil)
}

func (h *harness) givenTemplate(userID string) *types.Template {
	tmpl := &types.Template{
		ID:      "tpl_1",
		UserID:  userID,
		Subject: "Quick follow-up, {name}",
		Body:    "<p>How is {project} going at {company}?</p>",
		Stage:   1,
	}
	h.templates.On("FirstByStage", mock.Anything, userID).Return(tmpl, nil)
	return tmpl
}

func (h *harness) givenRecipients(userID string, rs ...types.Recipient) {
	h.recipients.On("ListByUser", mock.Anything, userID).Return(rs, nil)
}
