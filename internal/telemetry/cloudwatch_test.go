package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaunch/internal/dispatch"
	"relaunch/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func discardLogger() types.Logger {
	return types.NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func dimension(t *testing.T, ds []cwtypes.Dimension, name string) string {
	t.Helper()
	for _, d := range ds {
		if *d.Name == name {
			return *d.Value
		}
	}
	t.Fatalf("dimension %q not found", name)
	return ""
}

func TestRecordDispatch(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", discardLogger())

	m.RecordDispatch(context.Background(), types.ProviderMailerSend, "success", 1500*time.Millisecond)

	require.Len(t, cw.calls, 1)
	input := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, *input.Namespace)
	require.Len(t, input.MetricData, 2)

	attempt := input.MetricData[0]
	assert.Equal(t, types.MetricDispatchAttempt, *attempt.MetricName)
	assert.Equal(t, cwtypes.StandardUnitCount, attempt.Unit)
	assert.Equal(t, "mailersend", dimension(t, attempt.Dimensions, types.DimProvider))
	assert.Equal(t, "success", dimension(t, attempt.Dimensions, types.DimResult))

	latency := input.MetricData[1]
	assert.Equal(t, types.MetricDispatchLatency, *latency.MetricName)
	assert.Equal(t, 1500.0, *latency.Value)
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, latency.Unit)
}

func TestRecordBatch(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "ReLaunchTest", discardLogger())

	m.RecordBatch(context.Background(), dispatch.OutcomePartialFailure, 2, 3)

	require.Len(t, cw.calls, 1)
	assert.Equal(t, "ReLaunchTest", *cw.calls[0].Namespace)
	sent := cw.calls[0].MetricData[1]
	assert.Equal(t, types.MetricBatchSent, *sent.MetricName)
	assert.Equal(t, 2.0, *sent.Value)
	assert.Equal(t, "partial_failure", dimension(t, sent.Dimensions, types.DimOutcome))
}

func TestRecordAuditFailure(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", discardLogger())

	m.RecordAuditFailure(context.Background())

	require.Len(t, cw.calls, 1)
	assert.Equal(t, types.MetricAuditWriteFailure, *cw.calls[0].MetricData[0].MetricName)
	assert.Empty(t, cw.calls[0].MetricData[0].Dimensions)
}

func TestRecordRequest(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", discardLogger())

	m.RecordRequest("POST", "/v1/dispatch", "200", 42*time.Millisecond)

	require.Len(t, cw.calls, 1)
	data := cw.calls[0].MetricData
	require.Len(t, data, 2)
	assert.Equal(t, types.MetricAPIRequestCount, *data[0].MetricName)
	assert.Equal(t, "/v1/dispatch", dimension(t, data[0].Dimensions, types.DimEndpoint))
	assert.Equal(t, 42.0, *data[1].Value)
}

func TestPutFailureIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	m := NewCloudWatchMetrics(cw, "", discardLogger())

	assert.NotPanics(t, func() {
		m.RecordDispatch(context.Background(), types.ProviderSendGrid, "failure", time.Second)
	})
	assert.Len(t, cw.calls, 1)
}

func TestPutSurvivesCancelledContext(t *testing.T) {
	var seen error
	cw := &ctxCheckingClient{onPut: func(ctx context.Context) { seen = ctx.Err() }}
	m := NewCloudWatchMetrics(cw, "", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.RecordAuditFailure(ctx)

	assert.NoError(t, seen)
}

type ctxCheckingClient struct {
	onPut func(ctx context.Context)
}

func (c *ctxCheckingClient) PutMetricData(ctx context.Context, _ *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.onPut(ctx)
	return &cloudwatch.PutMetricDataOutput{}, nil
}
