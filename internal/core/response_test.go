package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaunch/internal/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestJSON_WritesStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusCreated, map[string]int{"sent": 2})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"sent":2}`, rec.Body.String())
}

func TestJSON_MarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), decodeError(t, rec).Code)
}

func TestError_AppErrorMapsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req_9"))

	appErr := types.NewAppErrorWithDetails(types.ErrCodeDispatchTotalFailure, "no emails were sent", nil,
		map[string]any{"failed_count": 3})
	Error(rec, req, fmt.Errorf("batch: %w", appErr))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeDispatchTotalFailure), detail.Code)
	assert.Equal(t, "no emails were sent", detail.Message)
	assert.Equal(t, "req_9", detail.RequestID)
	assert.EqualValues(t, 3, detail.Details["failed_count"])
}

func TestError_UnknownErrorIsMasked(t *testing.T) {
	logger, buf := bufferLogger()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithLogger(req.Context(), types.NewSlogAdapter(logger)))

	Error(rec, req, errors.New("pq: connection refused to 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "an unexpected error occurred", detail.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Mode  string `json:"mode"`
		Async bool   `json:"async"`
	}

	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantMessage string
	}{
		{name: "valid", body: `{"mode":"all","async":true}`},
		{name: "empty body", body: "", wantErr: true, wantMessage: "request body must not be empty"},
		{name: "malformed", body: `{"mode":`, wantErr: true},
		{name: "syntax error", body: `{"mode" "all"}`, wantErr: true, wantMessage: "malformed JSON in request body"},
		{name: "wrong type", body: `{"async":"yes"}`, wantErr: true, wantMessage: "invalid value for field"},
		{name: "unknown field", body: `{"modes":"all"}`, wantErr: true, wantMessage: `unknown field in request body: "modes"`},
		{name: "trailing value", body: `{"mode":"all"}{"mode":"single"}`, wantErr: true, wantMessage: "request body must contain a single JSON object"},
		{name: "too large", body: `{"mode":"` + strings.Repeat("a", maxRequestBodySize) + `"}`, wantErr: true, wantMessage: "request body must not exceed 1MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst payload
			err := DecodeJSON(rec, req, &dst)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, payload{Mode: "all", Async: true}, dst)
				return
			}

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, errCodeValidationInvalidJSON, appErr.Code)
			assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, appErr.Message)
			}
		})
	}
}
