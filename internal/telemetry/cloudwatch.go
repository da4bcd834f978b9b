// Package telemetry publishes dispatch and API metrics to CloudWatch.
package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"relaunch/internal/dispatch"
	"relaunch/internal/types"
)

// putTimeout bounds a single PutMetricData call so a slow CloudWatch never
// stalls a send.
const putTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits dispatch metrics and API request metrics.
//
// Metrics emitted:
//   - DispatchAttempt: Dims {Provider, Result}, one per provider call
//   - DispatchLatency: Dims {Provider}, milliseconds
//   - BatchCompleted: Dims {Outcome}, one per run
//   - BatchSent: Dims {Outcome}, emails sent in the run
//   - AuditWriteFailure: no dims
//   - APIRequestCount / APILatency: Dims {Method, Endpoint, Status}
//
// Publishing failures are logged and never returned.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ dispatch.Metrics = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a publisher for namespace. An empty namespace
// uses types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordDispatch records one provider call and its latency.
func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, provider types.EmailProvider, result string, latency time.Duration) {
	m.put(ctx, "dispatch",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricDispatchAttempt),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims(types.DimProvider, string(provider), types.DimResult, result),
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricDispatchLatency),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims(types.DimProvider, string(provider)),
		},
	)
}

// RecordBatch records the outcome of a batch run.
func (m *CloudWatchMetrics) RecordBatch(ctx context.Context, outcome dispatch.RunOutcome, sent, total int) {
	m.put(ctx, "batch",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricBatchCompleted),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims(types.DimOutcome, string(outcome)),
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricBatchSent),
			Value:      aws.Float64(float64(sent)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims(types.DimOutcome, string(outcome)),
		},
	)
	if total > sent {
		m.logger.Info("batch finished with failures", "outcome", string(outcome), "sent", sent, "total", total)
	}
}

// RecordAuditFailure counts a history write that failed after a send.
func (m *CloudWatchMetrics) RecordAuditFailure(ctx context.Context) {
	m.put(ctx, "audit",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAuditWriteFailure),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
		},
	)
}

// RecordRequest implements core.MetricsCollector.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	d := dims(types.DimMethod, method, types.DimEndpoint, endpoint, types.DimStatus, status)
	m.put(context.Background(), "api",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: d,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: d,
		},
	)
}

func (m *CloudWatchMetrics) put(ctx context.Context, kind string, data ...cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), putTimeout)
	defer cancel()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Error("failed to publish metrics",
			"kind", kind,
			"datums", strconv.Itoa(len(data)),
			"error", err.Error(),
		)
	}
}

// dims builds dimensions from name/value pairs.
func dims(pairs ...string) []cwtypes.Dimension {
	out := make([]cwtypes.Dimension, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, cwtypes.Dimension{
			Name:  aws.String(pairs[i]),
			Value: aws.String(pairs[i+1]),
		})
	}
	return out
}
