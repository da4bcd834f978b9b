// Package main is the entrypoint for the Dispatch Worker Lambda function.
//
// The worker consumes DispatchJobs published by POST
// /v1/users/{userID}/dispatch with async=true and runs each one through the
// same dispatch.Service the API uses for synchronous runs.
//
// Cold Start (main):
//  1. Load configuration (env, dotenv, SSM).
//  2. Initialize structured logger.
//  3. Wire the dispatch components (pool, repositories, senders, metrics).
//  4. Register handler and call lambda.Start.
//
// Handler flow, for each SQS message in the batch:
//  1. Decode the DispatchJob. Malformed bodies are logged and ACKed.
//  2. RunBatch for the job's user and mode.
//  3. Gate failures and total failures are final: log and ACK.
//  4. Infrastructure errors (database, sealing) are reported as batch item
//     failures so SQS redelivers only that message.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"relaunch/internal/app"
	"relaunch/internal/config"
	"relaunch/internal/dispatch"
	"relaunch/internal/queue"
	"relaunch/internal/types"
)

// BatchRunner runs one batch. It is satisfied by *dispatch.Service.
type BatchRunner interface {
	RunBatch(ctx context.Context, req dispatch.BatchRequest) (*dispatch.BatchReport, error)
}

// Handler holds the dependencies for the dispatch worker Lambda handler.
type Handler struct {
	runner BatchRunner
	logger types.Logger
}

// Handle processes an SQS event containing one or more dispatch jobs.
// Lambda SQS integration uses partial batch responses: messages that fail
// with a retryable error are returned in batchItemFailures.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("dispatch job will be retried",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage runs one job. A nil return ACKs the message.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	start := time.Now()

	job, err := queue.DecodeDispatchJob(record.Body)
	if err != nil {
		// Permanent parse failure - do not retry.
		h.logger.Error("dropping malformed dispatch job",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := h.logger.With(
		"job_id", job.JobID,
		"user_id", job.UserID,
		"mode", string(job.Mode),
		"trace_id", job.TraceID,
	)
	if job.TraceID != "" {
		ctx = types.WithRequestID(ctx, job.TraceID)
	}
	ctx = types.WithLogger(ctx, logger)

	report, err := h.runner.RunBatch(ctx, dispatch.BatchRequest{UserID: job.UserID, Mode: job.Mode})
	switch {
	case err == nil:
		logger.Info("dispatch job completed",
			"outcome", string(report.Outcome),
			"sent", report.SentCount,
			"total", report.TotalCount,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	case isFinal(err):
		logger.Warn("dispatch job finished without sending",
			"error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	default:
		return fmt.Errorf("job %s: %w", job.JobID, err)
	}
}

// isFinal reports whether redelivering the job cannot change its result.
// Gate failures need user action first, and a total failure already
// attempted every recipient.
func isFinal(err error) bool {
	var (
		verr *dispatch.ValidationError
		berr *dispatch.BatchFailedError
	)
	return errors.As(err, &verr) || errors.As(err, &berr)
}

func main() {
	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel).With("component", "dispatch-worker")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := app.Build(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		runner: components.Service,
		logger: types.NewSlogAdapter(logger),
	}

	logger.Info("dispatch worker initialized",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)
	lambda.Start(handler.Handle)
}
