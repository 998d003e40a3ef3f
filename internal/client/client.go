// Package client provides an HTTP client for a remote trimtofit server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/progress"
	"github.com/maauso/trimtofit/internal/server"
	"github.com/maauso/trimtofit/internal/timeline"
)

// Static errors for client operations.
var (
	// ErrBaseURLRequired is returned when no server URL is provided.
	ErrBaseURLRequired = errors.New("client: server URL is required")
	// ErrJobIDRequired is returned when the job ID is not provided.
	ErrJobIDRequired = errors.New("client: job ID is required")
	// ErrUnsupportedRequest is returned for request types the API cannot carry.
	ErrUnsupportedRequest = errors.New("client: unsupported request type")
	// ErrJobFailed is returned by Wait when the job ends in FAILED.
	ErrJobFailed = errors.New("client: job failed")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("client: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("client: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("client: request failed")
)

// APIError is a non-2xx response carrying the server's error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the trimtofit HTTP API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxRetries   int
	baseBackoff  time.Duration
	pollInterval time.Duration
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) Option {
	return func(cl *Client) {
		cl.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(cl *Client) {
		cl.baseBackoff = d
	}
}

// WithPollInterval sets how often Wait polls the job status.
func WithPollInterval(d time.Duration) Option {
	return func(cl *Client) {
		cl.pollInterval = d
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		maxRetries:   3,
		baseBackoff:  500 * time.Millisecond,
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit sends req to the matching POST /jobs/<kind> endpoint.
func (c *Client) Submit(ctx context.Context, req job.Request) (server.CreateJobResponse, error) {
	var path string
	var body any

	switch r := req.(type) {
	case job.TrimRequest:
		path = "/jobs/trim"
		body = server.TrimJobRequest{
			InputPath:  r.InputPath,
			OutputPath: r.OutputPath,
			Mode:       string(r.Mode),
			Ranges:     rangeDTOs(r.Ranges),
			PushToS3:   r.PushToS3,
		}
	case job.SpeedRequest:
		path = "/jobs/speed"
		body = server.SpeedJobRequest{
			InputPath:  r.InputPath,
			OutputPath: r.OutputPath,
			Factor:     r.Factor,
			PushToS3:   r.PushToS3,
		}
	case job.ConvertRequest:
		path = "/jobs/convert"
		body = server.ConvertJobRequest{
			InputPath:  r.InputPath,
			Format:     r.Format,
			OutputPath: r.OutputPath,
			PushToS3:   r.PushToS3,
		}
	case job.MergeRequest:
		path = "/jobs/merge"
		body = server.MergeJobRequest{
			InputPaths: r.InputPaths,
			OutputPath: r.OutputPath,
			PushToS3:   r.PushToS3,
		}
	default:
		return server.CreateJobResponse{}, fmt.Errorf("%w: %T", ErrUnsupportedRequest, req)
	}

	var resp server.CreateJobResponse
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return server.CreateJobResponse{}, err
	}
	return resp, nil
}

// Get fetches the current state of a job.
func (c *Client) Get(ctx context.Context, jobID string) (server.JobResponse, error) {
	if jobID == "" {
		return server.JobResponse{}, ErrJobIDRequired
	}

	var resp server.JobResponse
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+jobID, nil, &resp); err != nil {
		return server.JobResponse{}, err
	}
	return resp, nil
}

// List fetches every job the server knows about.
func (c *Client) List(ctx context.Context) ([]server.JobResponse, error) {
	var resp server.ListJobsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Delete removes a finished job.
func (c *Client) Delete(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrJobIDRequired
	}
	return c.doJSON(ctx, http.MethodDelete, "/jobs/"+jobID, nil, nil)
}

// Plan asks the server to resolve ranges against a duration.
func (c *Client) Plan(ctx context.Context, req server.PlanRequest) (server.PlanResponse, error) {
	var resp server.PlanResponse
	if err := c.doJSON(ctx, http.MethodPost, "/plan", req, &resp); err != nil {
		return server.PlanResponse{}, err
	}
	return resp, nil
}

// Wait polls a job until it reaches a terminal status, forwarding progress
// to sink. A FAILED job is returned together with ErrJobFailed.
func (c *Client) Wait(ctx context.Context, jobID string, sink progress.Sink) (server.JobResponse, error) {
	sink = progress.Monotonic(sink)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.Get(ctx, jobID)
		if err != nil {
			return server.JobResponse{}, err
		}
		sink(resp.Progress)

		switch job.Status(resp.Status) {
		case job.StatusCompleted:
			return resp, nil
		case job.StatusFailed:
			return resp, fmt.Errorf("%w: %s", ErrJobFailed, resp.Error)
		}

		select {
		case <-ctx.Done():
			return server.JobResponse{}, fmt.Errorf("client: context cancelled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func rangeDTOs(ranges []timeline.Range) []server.RangeDTO {
	out := make([]server.RangeDTO, len(ranges))
	for i, r := range ranges {
		out[i] = server.RangeDTO{StartMs: r.Start, EndMs: r.End}
	}
	return out
}

// doJSON performs an HTTP request with exponential backoff retry.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
	}

	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("client: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.do(ctx, method, c.baseURL+path, payload, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("client: max retries exceeded: %w", lastErr)
}

// do performs a single HTTP request.
func (c *Client) do(ctx context.Context, method, url string, payload []byte, result any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("client: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("client: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		switch {
		case resp.StatusCode >= 500:
			return &retryableError{err: fmt.Errorf("%w: %w", ErrServerError, apiErr)}
		case resp.StatusCode == http.StatusTooManyRequests:
			return &retryableError{err: fmt.Errorf("%w: %w", ErrRateLimited, apiErr)}
		default:
			return fmt.Errorf("%w: %w", ErrRequestFailed, apiErr)
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("client: unmarshal response: %w", err)
		}
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var er server.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Code != "" {
		return &APIError{StatusCode: status, Code: er.Code, Message: er.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
