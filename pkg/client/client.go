// Package client is a Go client for the rubric evaluation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/models"
)

// DefaultPollInterval is how often WaitForEvaluation asks for a result.
const DefaultPollInterval = 3 * time.Second

// ErrEvaluationFailed is returned when a submission ends in the failed state.
var ErrEvaluationFailed = errors.New("evaluation failed")

// APIError carries a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Client talks to the /api/v2 endpoints with a bearer token.
type Client struct {
	baseURL      string
	token        string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithPollInterval changes the WaitForEvaluation cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithLogger attaches a logger for polling progress.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "rubric_client").Logger()
	}
}

// New builds a client for the server at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		pollInterval: DefaultPollInterval,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends a document for evaluation against rubricID.
func (c *Client) Upload(ctx context.Context, rubricID, filename string, content io.Reader) (dto.SubmissionResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("rubric_id", rubricID); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to write rubric field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to finalise form: %w", err)
	}

	var submission dto.SubmissionResponse
	_, err = c.do(ctx, http.MethodPost, "/api/v2/submissions", writer.FormDataContentType(), &buf, &submission)
	return submission, err
}

// Evaluation returns the evaluation when it exists, otherwise nil and the submission status.
func (c *Client) Evaluation(ctx context.Context, submissionID string) (*dto.EvaluationResponse, dto.EvaluationStatusResponse, error) {
	var raw json.RawMessage
	status, err := c.do(ctx, http.MethodGet, "/api/v2/submissions/"+submissionID+"/evaluation", "", nil, &raw)
	if err != nil {
		return nil, dto.EvaluationStatusResponse{}, err
	}

	if status == http.StatusAccepted {
		var pending dto.EvaluationStatusResponse
		if err := json.Unmarshal(raw, &pending); err != nil {
			return nil, dto.EvaluationStatusResponse{}, fmt.Errorf("failed to decode status: %w", err)
		}
		return nil, pending, nil
	}

	var evaluation dto.EvaluationResponse
	if err := json.Unmarshal(raw, &evaluation); err != nil {
		return nil, dto.EvaluationStatusResponse{}, fmt.Errorf("failed to decode evaluation: %w", err)
	}
	return &evaluation, dto.EvaluationStatusResponse{ID: submissionID, Status: "completed"}, nil
}

// WaitForEvaluation polls until the evaluation exists, the submission fails or ctx ends.
func (c *Client) WaitForEvaluation(ctx context.Context, submissionID string) (dto.EvaluationResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		evaluation, status, err := c.Evaluation(ctx, submissionID)
		if err != nil {
			return dto.EvaluationResponse{}, err
		}
		if evaluation != nil {
			return *evaluation, nil
		}
		if status.Status == models.SubmissionStatusFailed {
			return dto.EvaluationResponse{}, fmt.Errorf("%w: %s", ErrEvaluationFailed, status.FailureReason)
		}

		c.logger.Debug().Str("submission_id", submissionID).Str("status", status.Status).Msg("evaluation not ready")

		select {
		case <-ctx.Done():
			return dto.EvaluationResponse{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stats fetches the caller's aggregate evaluation stats.
func (c *Client) Stats(ctx context.Context) (dto.StatsResponse, error) {
	var stats dto.StatsResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v2/evaluations/stats", "", nil, &stats)
	return stats, err
}

// Rubrics lists the caller's rubrics.
func (c *Client) Rubrics(ctx context.Context) ([]dto.RubricResponse, error) {
	var rubrics []dto.RubricResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v2/rubrics", "", nil, &rubrics)
	return rubrics, err
}

// SeedDefaultRubrics installs the built-in rubrics for the caller.
func (c *Client) SeedDefaultRubrics(ctx context.Context) ([]dto.RubricResponse, error) {
	var seeded struct {
		Rubrics []dto.RubricResponse `json:"rubrics"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v2/rubrics/defaults", "", nil, &seeded)
	return seeded.Rubrics, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, target interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	var payload envelope
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: "undecodable response"}
	}

	if resp.StatusCode >= http.StatusBadRequest || !payload.Success {
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: payload.Message}
	}

	if target != nil && len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, target); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
