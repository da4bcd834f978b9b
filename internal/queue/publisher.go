// Package queue carries asynchronous batch dispatch jobs over SQS: the API
// publishes a DispatchJob and the dispatch worker decodes and runs it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"relaunch/internal/config"
	"relaunch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DispatchPublisher sends DispatchJobs to the dispatch queue.
type DispatchPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewDispatchPublisher creates a publisher for the queue named in awsCfg.
// It returns nil when no dispatch queue is configured.
func NewDispatchPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *DispatchPublisher {
	if awsCfg.DispatchQueue == "" {
		return nil
	}
	return &DispatchPublisher{
		client:   client,
		queueURL: awsCfg.DispatchQueue,
		logger:   logger,
	}
}

// PublishDispatchJob serializes job and sends it. The job carries no
// credential material; the worker reloads the credential when it runs.
func (p *DispatchPublisher) PublishDispatchJob(ctx context.Context, job types.DispatchJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal DispatchJob: %w", err)
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"job_id": {
			DataType:    aws.String("String"),
			StringValue: aws.String(job.JobID),
		},
	}
	if job.TraceID != "" {
		attrs["trace_id"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(job.TraceID),
		}
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("queue: failed to send DispatchJob to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "dispatch job published",
		"queue_url", p.queueURL,
		"job_id", job.JobID,
		"user_id", job.UserID,
		"mode", string(job.Mode),
		"trace_id", job.TraceID,
	)
	return nil
}

// ErrMalformedJob marks a message body that can never be processed. The
// worker drops such messages instead of retrying them.
var ErrMalformedJob = errors.New("queue: malformed dispatch job")

// DecodeDispatchJob parses and checks an SQS message body.
func DecodeDispatchJob(body string) (types.DispatchJob, error) {
	var job types.DispatchJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return types.DispatchJob{}, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if job.JobID == "" || job.UserID == "" {
		return types.DispatchJob{}, fmt.Errorf("%w: job_id and user_id are required", ErrMalformedJob)
	}
	if job.Mode == "" {
		job.Mode = types.DispatchModeAll
	}
	if !job.Mode.Valid() {
		return types.DispatchJob{}, fmt.Errorf("%w: unknown mode %q", ErrMalformedJob, job.Mode)
	}
	return job, nil
}
