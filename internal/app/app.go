// Package app builds the dependency graph shared by the API server and the
// dispatch worker: database pool, repositories, email senders, dispatch
// service, telemetry and the job publisher.
//
// Cold start:
//  1. Open the pgx pool and verify connectivity.
//  2. Build the credential sealer and repositories.
//  3. Build the sender registry (stub mode, egress guard from config).
//  4. Load the AWS SDK config only when metrics or the dispatch queue are
//     enabled, so local runs need no AWS credentials.
//  5. Assemble the dispatch.Service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"relaunch/internal/config"
	"relaunch/internal/db"
	"relaunch/internal/dispatch"
	"relaunch/internal/external"
	"relaunch/internal/queue"
	"relaunch/internal/security"
	"relaunch/internal/telemetry"
	"relaunch/internal/types"
)

// Components is the wired dependency graph.
type Components struct {
	Pool      *pgxpool.Pool
	Settings  *db.SettingsRepository
	Templates *db.TemplateRepository
	Service   *dispatch.Service

	// Metrics is nil when ENABLE_METRICS is off.
	Metrics *telemetry.CloudWatchMetrics
}

// Close releases the database pool.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Build wires every component from cfg. The caller owns Close.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	sealer, err := security.NewSealer(cfg.Security.CredentialSealingKey.Unmask())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building credential sealer: %w", err)
	}
	if sealer == nil {
		logger.Warn("CREDENTIAL_SEALING_KEY is not set; API keys are stored unsealed")
	}

	senders, err := external.NewSenderRegistry(cfg.Email, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building email senders: %w", err)
	}

	selection, err := dispatch.ParseSelectionPolicy(cfg.Dispatch.Selection)
	if err != nil {
		pool.Close()
		return nil, err
	}

	c := &Components{
		Pool:      pool,
		Settings:  db.NewSettingsRepository(pool, sealer),
		Templates: db.NewTemplateRepository(pool),
	}

	deps := dispatch.Deps{
		Credentials: c.Settings,
		Templates:   c.Templates,
		Recipients:  db.NewProspectRepository(pool),
		History:     db.NewHistoryRepository(pool),
		Senders:     senders,
		Policy: dispatch.NewDomainPolicy(map[types.EmailProvider][]string{
			types.ProviderMailerSend: cfg.Email.MailerSendAllowedDomains,
		}),
		Layout:    dispatch.NewLayout(cfg.Email.SanitizeHTML, time.Now),
		Selection: selection,
		Logger:    types.NewSlogAdapter(logger),
	}

	if cfg.Observability.EnableMetrics || cfg.AWS.DispatchQueue != "" {
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if cfg.Observability.EnableMetrics {
			c.Metrics = telemetry.NewCloudWatchMetrics(
				cloudwatch.NewFromConfig(awsCfg),
				cfg.Observability.MetricNamespace,
				types.NewSlogAdapter(logger),
			)
			deps.Metrics = c.Metrics
		}
		if pub := queue.NewDispatchPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS, logger); pub != nil {
			deps.Publisher = pub
		}
	}

	c.Service = dispatch.NewService(deps, dispatch.Options{
		From: types.EmailAddress{
			Address: cfg.Email.FromAddress,
			Name:    cfg.Email.FromName,
		},
		Workers:         cfg.Dispatch.Workers,
		ProviderTimeout: cfg.Email.ProviderTimeout,
	})

	logger.Info("dispatch components ready",
		"providers", senders.Providers(),
		"workers", cfg.Dispatch.Workers,
		"selection", cfg.Dispatch.Selection,
		"metrics", c.Metrics != nil,
		"async", deps.Publisher != nil,
	)
	return c, nil
}

// LoadAWSConfig loads the SDK config for cfg.Region. AWS_ENDPOINT_URL
// points every client at LocalStack.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// NewLogger creates a JSON slog.Logger for level. Unknown levels fall back
// to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// SecretProvider returns the SSM provider outside local development.
func SecretProvider() config.SecretProvider {
	if env, _ := os.LookupEnv("APP_ENV"); env == "local" {
		return nil
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return config.NewSSMProvider(region)
}
