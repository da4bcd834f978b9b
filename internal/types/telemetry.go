package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency        = "APILatency"
	MetricAPIRequestCount   = "APIRequestCount"
	MetricDispatchAttempt   = "DispatchAttempt"
	MetricDispatchLatency   = "DispatchLatency"
	MetricBatchCompleted    = "BatchCompleted"
	MetricBatchSent         = "BatchSent"
	MetricAuditWriteFailure = "AuditWriteFailure"

	// Dimension Keys
	DimProvider = "Provider"
	DimResult   = "Result"
	DimOutcome  = "Outcome"
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"

	// Metric Namespace
	MetricNamespace = "ReLaunch"
)
