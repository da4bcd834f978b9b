package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"relaunch/internal/core"
	"relaunch/internal/dispatch"
	"relaunch/internal/types"
)

// mockDispatchService implements DispatchService for testing.
type mockDispatchService struct {
	sendFn     func(ctx context.Context, req dispatch.DirectRequest) (*dispatch.DirectResult, error)
	testFn     func(ctx context.Context, userID, templateID, to string) (*dispatch.DirectResult, error)
	runBatchFn func(ctx context.Context, req dispatch.BatchRequest) (*dispatch.BatchReport, error)
	enqueueFn  func(ctx context.Context, req dispatch.BatchRequest) (string, error)

	capturedDirect *dispatch.DirectRequest
	capturedBatch  *dispatch.BatchRequest
}

func (m *mockDispatchService) Send(ctx context.Context, req dispatch.DirectRequest) (*dispatch.DirectResult, error) {
	m.capturedDirect = &req
	if m.sendFn != nil {
		return m.sendFn(ctx, req)
	}
	return &dispatch.DirectResult{Recipient: req.To, Name: "there", Project: "your project", Company: "your company"}, nil
}

func (m *mockDispatchService) SendTemplateTest(ctx context.Context, userID, templateID, to string) (*dispatch.DirectResult, error) {
	if m.testFn != nil {
		return m.testFn(ctx, userID, templateID, to)
	}
	return &dispatch.DirectResult{Recipient: to}, nil
}

func (m *mockDispatchService) RunBatch(ctx context.Context, req dispatch.BatchRequest) (*dispatch.BatchReport, error) {
	m.capturedBatch = &req
	if m.runBatchFn != nil {
		return m.runBatchFn(ctx, req)
	}
	return dispatch.NewBatchReport(nil), nil
}

func (m *mockDispatchService) EnqueueBatch(ctx context.Context, req dispatch.BatchRequest) (string, error) {
	m.capturedBatch = &req
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, req)
	}
	return "job_1", nil
}

// mockSettingsRepo implements SettingsRepo for testing.
type mockSettingsRepo struct {
	getFn  func(ctx context.Context, userID string) (*types.EmailCredential, error)
	saveFn func(ctx context.Context, cred *types.EmailCredential) error

	saved *types.EmailCredential
}

func (m *mockSettingsRepo) GetCredential(ctx context.Context, userID string) (*types.EmailCredential, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockSettingsRepo) SaveCredential(ctx context.Context, cred *types.EmailCredential) error {
	m.saved = cred
	if m.saveFn != nil {
		return m.saveFn(ctx, cred)
	}
	return nil
}

// mockTemplateLister implements TemplateLister for testing.
type mockTemplateLister struct {
	listFn func(ctx context.Context, userID string) ([]types.Template, error)
}

func (m *mockTemplateLister) ListByUser(ctx context.Context, userID string) ([]types.Template, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []types.Template{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter mounts every handler the way cmd/api does, minus the
// global middleware.
func newTestRouter(svc *mockDispatchService, settings *mockSettingsRepo, templates *mockTemplateLister) http.Handler {
	v := core.NewValidator(testLogger())
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		NewDispatchHandler(svc, v, testLogger()).RegisterRoutes(r)
		NewSettingsHandler(settings, v, testLogger()).RegisterRoutes(r)
		NewTemplateHandler(templates, svc, v, testLogger()).RegisterRoutes(r)
	})
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
