package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaunch/internal/dispatch"
	"relaunch/internal/types"
)

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestDirect_Success(t *testing.T) {
	svc := &mockDispatchService{
		sendFn: func(_ context.Context, req dispatch.DirectRequest) (*dispatch.DirectResult, error) {
			return &dispatch.DirectResult{Recipient: req.To, Name: "Ada", Project: "your project", Company: "Acme"}, nil
		},
	}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	rec := doRequest(t, h, http.MethodPost, "/v1/dispatch", `{
		"provider": "sendgrid",
		"api_key": "SG.key",
		"to": "ada@example.com",
		"subject": "Hi {name}",
		"html": "<p>{company}</p>",
		"name": "Ada",
		"company": "Acme",
		"prospect_id": "p_1",
		"template_id": "tpl_1",
		"user_id": "user_1"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"message": "Email sent successfully",
		"recipient": "ada@example.com",
		"name": "Ada",
		"project": "your project",
		"company": "Acme"
	}`, rec.Body.String())

	got := svc.capturedDirect
	require.NotNil(t, got)
	assert.Equal(t, "sendgrid", got.Provider)
	assert.Equal(t, "SG.key", got.APIKey.Unmask())
	assert.Equal(t, "p_1", got.ProspectID)
	assert.Equal(t, "tpl_1", got.TemplateID)
	assert.Equal(t, "user_1", got.UserID)
}

func TestDirect_AcceptsLegacyAliases(t *testing.T) {
	svc := &mockDispatchService{}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	rec := doRequest(t, h, http.MethodPost, "/v1/dispatch",
		`{"email_provider":"mailersend","email_api_key":"mlsn.key","to":"a@gmail.com","subject":"s","html":"h"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mailersend", svc.capturedDirect.Provider)
	assert.Equal(t, "mlsn.key", svc.capturedDirect.APIKey.Unmask())
}

func TestDirect_CanonicalFieldWinsOverAlias(t *testing.T) {
	svc := &mockDispatchService{}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	doRequest(t, h, http.MethodPost, "/v1/dispatch",
		`{"provider":"resend","email_provider":"sendgrid","api_key":"re_key","email_api_key":"SG.old","to":"a@b.io","subject":"s","html":"h"}`)

	assert.Equal(t, "resend", svc.capturedDirect.Provider)
	assert.Equal(t, "re_key", svc.capturedDirect.APIKey.Unmask())
}

func TestDirect_Failures(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		sendErr     error
		wantError   string
		wantDetails string
	}{
		{
			name:        "validation error verbatim",
			body:        `{"api_key":"k","subject":"s","html":"h"}`,
			sendErr:     &dispatch.ValidationError{Code: types.ErrCodeValidationMissingField, Field: "provider", Message: "Email provider is required"},
			wantError:   "Email provider is required",
			wantDetails: string(types.ErrCodeValidationMissingField),
		},
		{
			name:        "malformed body",
			body:        `{"provider":`,
			wantError:   "invalid JSON in request body",
			wantDetails: "validation_invalid_json",
		},
		{
			name: "provider error",
			body: `{"provider":"sendgrid","api_key":"k","to":"a@b.io","subject":"s","html":"h"}`,
			sendErr: &dispatch.ProviderError{
				Provider: types.ProviderSendGrid,
				Err:      types.NewAppError(types.ErrCodeUpstreamEmailAuth, "The provided authorization grant is invalid", nil),
			},
			wantError:   "Failed to send email: The provided authorization grant is invalid",
			wantDetails: string(types.ErrCodeUpstreamEmailAuth),
		},
		{
			name: "provider timeout",
			body: `{"provider":"sendgrid","api_key":"k","to":"a@b.io","subject":"s","html":"h"}`,
			sendErr: &dispatch.ProviderError{
				Provider: types.ProviderSendGrid,
				Err:      context.DeadlineExceeded,
			},
			wantError: "Failed to send email: timeout",
		},
		{
			name:        "policy rejection",
			body:        `{"provider":"mailersend","api_key":"k","to":"a@corp.io","subject":"s","html":"h"}`,
			sendErr:     &dispatch.PolicyRejection{Provider: types.ProviderMailerSend, Email: "a@corp.io", Domain: "corp.io"},
			wantError:   "Failed to send email: domain corp.io is not supported by mailersend",
			wantDetails: string(types.ErrCodePolicyDomainRejected),
		},
		{
			name:      "unexpected error",
			body:      `{"provider":"sendgrid","api_key":"k","to":"a@b.io","subject":"s","html":"h"}`,
			sendErr:   errors.New("boom"),
			wantError: "Failed to send email: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDispatchService{
				sendFn: func(context.Context, dispatch.DirectRequest) (*dispatch.DirectResult, error) {
					return nil, tt.sendErr
				},
			}
			h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

			rec := doRequest(t, h, http.MethodPost, "/v1/dispatch", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[DirectSendFailure](t, rec.Body.Bytes())
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantDetails, resp.Details)
		})
	}
}

func TestBatch_SyncSuccess(t *testing.T) {
	svc := &mockDispatchService{
		runBatchFn: func(context.Context, dispatch.BatchRequest) (*dispatch.BatchReport, error) {
			return dispatch.NewBatchReport([]dispatch.DispatchResult{
				{RecipientID: "p_1", Email: "a@gmail.com", Success: true},
				{RecipientID: "p_2", Email: "b@corp.io", Kind: dispatch.KindPolicyRejection, Reason: "domain corp.io is not supported by mailersend"},
			}), nil
		},
	}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	rec := doRequest(t, h, http.MethodPost, "/v1/users/user_1/dispatch", `{"mode":"all"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[dispatch.BatchReport](t, rec.Body.Bytes())
	assert.Equal(t, 1, report.SentCount)
	assert.Equal(t, 2, report.TotalCount)
	assert.Equal(t, dispatch.OutcomePartialFailure, report.Outcome)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "p_2", report.Failures[0].RecipientID)

	assert.Equal(t, "user_1", svc.capturedBatch.UserID)
	assert.Equal(t, types.DispatchModeAll, svc.capturedBatch.Mode)
}

func TestBatch_EmptyBodyUsesDefaultMode(t *testing.T) {
	svc := &mockDispatchService{}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	rec := doRequest(t, h, http.MethodPost, "/v1/users/user_1/dispatch", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.DispatchMode(""), svc.capturedBatch.Mode)
}

func TestBatch_InvalidMode(t *testing.T) {
	svc := &mockDispatchService{}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	rec := doRequest(t, h, http.MethodPost, "/v1/users/user_1/dispatch", `{"mode":"some"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationInvalidMode))
	assert.Nil(t, svc.capturedBatch, "service must not be called")
}

func TestBatch_GateFailure(t *testing.T) {
	svc := &mockDispatchService{
		runBatchFn: func(context.Context, dispatch.BatchRequest) (*dispatch.BatchReport, error) {
			return nil, &dispatch.ValidationError{Code: types.ErrCodeValidationNoTemplate, Message: "no templates found; create a template first"}
		},
	}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	rec := doRequest(t, h, http.MethodPost, "/v1/users/user_1/dispatch", `{"mode":"single"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no templates found; create a template first")
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationNoTemplate))
}

func TestBatch_TotalFailureCarriesReport(t *testing.T) {
	svc := &mockDispatchService{
		runBatchFn: func(context.Context, dispatch.BatchRequest) (*dispatch.BatchReport, error) {
			report := dispatch.NewBatchReport([]dispatch.DispatchResult{
				{RecipientID: "p_1", Email: "a@gmail.com", Kind: dispatch.KindProviderError, Reason: "unauthorized"},
			})
			return report, report.Err()
		},
	}
	h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

	rec := doRequest(t, h, http.MethodPost, "/v1/users/user_1/dispatch", `{"mode":"all"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Report dispatch.BatchReport `json:"report"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(types.ErrCodeDispatchTotalFailure), body.Error.Code)
	assert.Equal(t, "no emails sent: 1 failure(s)", body.Error.Message)
	assert.Equal(t, dispatch.OutcomeTotalFailure, body.Error.Details.Report.Outcome)
	assert.Equal(t, "unauthorized", body.Error.Details.Report.Failures[0].Reason)
}

func TestBatch_Async(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		svc := &mockDispatchService{}
		h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

		rec := doRequest(t, h, http.MethodPost, "/v1/users/user_1/dispatch", `{"mode":"single","async":true}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"job_id":"job_1","status":"queued"}`, rec.Body.String())
		assert.Equal(t, types.DispatchModeSingle, svc.capturedBatch.Mode)
	})

	t.Run("queue not configured", func(t *testing.T) {
		svc := &mockDispatchService{
			enqueueFn: func(context.Context, dispatch.BatchRequest) (string, error) {
				return "", types.NewAppError(types.ErrCodeInternalQueue, "asynchronous dispatch is not configured", nil)
			},
		}
		h := newTestRouter(svc, &mockSettingsRepo{}, &mockTemplateLister{})

		rec := doRequest(t, h, http.MethodPost, "/v1/users/user_1/dispatch", `{"async":true}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "asynchronous dispatch is not configured")
	})
}
