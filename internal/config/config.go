// Package config defines the global configuration structure for the ReLaunch
// dispatch service. Configuration is loaded once at process initialization
// and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the entrypoint to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"relaunch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"relaunch-dispatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Dispatch      DispatchConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// DispatchQueue receives asynchronous batch jobs. Empty disables async mode.
	DispatchQueue string `envconfig:"SQS_DISPATCH_JOBS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds sender identity and provider endpoint settings. Provider
// API keys are per-user credentials and are never part of process config.
type EmailConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"info@trial-r9084zvr6jegw63d.mlsender.net" validate:"required,email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"ReLaunch App"`

	SendGridBaseURL   string `envconfig:"SENDGRID_API_BASE" default:"https://api.sendgrid.com" validate:"required,url"`
	MailerSendBaseURL string `envconfig:"MAILERSEND_API_BASE" default:"https://api.mailersend.com" validate:"required,url"`
	ResendBaseURL     string `envconfig:"RESEND_API_BASE" default:"https://api.resend.com" validate:"required,url"`

	ProviderTimeout time.Duration `envconfig:"EMAIL_PROVIDER_TIMEOUT" default:"10s"`

	// MailerSendAllowedDomains restricts MailerSend recipients (trial accounts
	// only deliver to a fixed set of consumer domains).
	MailerSendAllowedDomains []string `envconfig:"MAILERSEND_ALLOWED_DOMAINS" default:"gmail.com,outlook.com,hotmail.com,yahoo.com,icloud.com"`

	SanitizeHTML bool `envconfig:"EMAIL_SANITIZE_HTML" default:"true"`

	// EgressGuard refuses provider connections to private, loopback and
	// metadata addresses. Disable it to point providers at a local mock.
	EgressGuard bool `envconfig:"EMAIL_EGRESS_GUARD" default:"true"`

	// StubMode replaces every provider with a logging stub so the service
	// can run locally without sending real mail.
	StubMode bool `envconfig:"EMAIL_STUB_MODE" default:"false"`
}

// DispatchConfig tunes the batch orchestrator.
type DispatchConfig struct {
	Workers int `envconfig:"DISPATCH_WORKERS" default:"4" validate:"min=1,max=32"`
	// Selection picks the representative recipient in single mode.
	Selection string `envconfig:"DISPATCH_SELECTION" default:"prefer_project" validate:"oneof=prefer_project first"`
}

// SecurityConfig holds credential sealing and CORS settings.
type SecurityConfig struct {
	// CredentialSealingKey is a base64-encoded 32-byte key. When empty, API
	// keys are stored as provided.
	CredentialSealingKey SecretString `envconfig:"CREDENTIAL_SEALING_KEY"`
	CorsAllowedOrigins   []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ReLaunch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
