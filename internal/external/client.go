// Package external holds the outbound provider adapters of the dispatch
// engine. Every HTTP-based adapter routes through BaseClient, which applies
// circuit breaking, retry with backoff, request-id propagation and error
// mapping uniformly across providers.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"relaunch/internal/types"

	"github.com/sony/gobreaker/v2"
)

// userAgent identifies the service to email providers.
const userAgent = "ReLaunch-Dispatch/1.0"

var errRateLimited = errors.New("upstream returned 429")

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is used by the provider adapters. Email sends are not
// idempotent on every provider, so retries are limited to responses where the
// provider explicitly refused the request (429/5xx).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) BaseClientOption {
	return func(c *BaseClient) {
		c.userAgent = ua
	}
}

// NewBaseClient creates a BaseClient with its own named circuit breaker. The
// breaker opens after more than five consecutive failures and half-opens
// after 30 seconds.
func NewBaseClient(httpClient *http.Client, breakerName string, retryPolicy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return NewBaseClientWithBreaker(httpClient, cb, retryPolicy, opts...)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided
// circuit breaker.
func NewBaseClientWithBreaker(httpClient *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response], retryPolicy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	bc := &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Do executes req with request-id propagation, the circuit breaker and retry
// on 429/5xx (respecting Retry-After).
//
// Any response other than 429/5xx is returned as-is and the caller closes the
// body. Exhausted retries, an open breaker, timeouts and transport failures
// are returned as *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if requestID := types.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Snapshot the body so it can be replayed on retries.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read request body for retry support", err)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		// A 429 is scoped to the caller's API key, so the shared breaker
		// records it as a success. It is still retried here.
		if err == nil && resp.StatusCode == http.StatusTooManyRequests {
			err = errRateLimited
		}
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		// Transport errors are not retried: the provider may have accepted
		// the message before the connection failed.
		if resp == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	var message string
	if lastResp != nil {
		message = readProviderMessage(lastResp.Body)
		lastResp.Body.Close()
	}
	return nil, c.mapError(ctx, lastResp, message, lastErr)
}

// computeBackoff honours Retry-After when present, otherwise uses
// exponential backoff with jitter clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retryPolicy.MinWait
				}
				return min(wait, c.retryPolicy.MaxWait)
			}
		}
	}

	base := math.Min(float64(c.retryPolicy.MinWait)*math.Pow(2, float64(attempt)), float64(c.retryPolicy.MaxWait))
	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// mapError translates a failed exchange into an AppError. message is the
// provider's own error text from the final response, if any.
func (c *BaseClient) mapError(ctx context.Context, resp *http.Response, message string, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker is open; upstream service unavailable", err)
	}
	if isTimeout(ctx, err) {
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "upstream request timed out", err)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, withProviderMessage("upstream rate limit exceeded", message), err)
		case resp.StatusCode >= 500:
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				withProviderMessage(fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), message), err)
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}

// isTimeout reports whether err stems from a deadline: the request context,
// the http.Client timeout or a network-level timeout.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func withProviderMessage(summary, message string) string {
	if message == "" {
		return summary
	}
	return summary + ": " + message
}
