// Package pipeline sends questions to pipeline endpoints. Failures come back
// as typed values on the Outcome, not as Go errors: one question's failure is
// data for the run, never a reason to stop it.
package pipeline

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
)

// ErrType classifies an attempt failure for grouping and retry decisions.
type ErrType string

const (
	ErrTypeNone      ErrType = ""
	ErrTypeTimeout   ErrType = "timeout"
	ErrTypeConn      ErrType = "connection"
	ErrTypeHTTP5xx   ErrType = "http_5xx"
	ErrTypeHTTP4xx   ErrType = "http_4xx"
	ErrTypeRateLimit ErrType = "rate_limited"
	ErrTypeEmptyBody ErrType = "empty_body"
	ErrTypeMalformed ErrType = "malformed_response"
)

var (
	errEmptyBody         = errors.New("empty response body")
	errMalformedResponse = errors.New("malformed response")
)

// Outcome is the normalized result of asking one question.
type Outcome struct {
	Answer    string
	LatencyMS int64
	Err       string
	ErrType   ErrType
}

// Client asks one pipeline endpoint questions with bounded retries.
type Client struct {
	endpoint string
	http     *http.Client
	policy   RetryPolicy
	now      func() time.Time
}

// Config tunes a Client.
type Config struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Sleep overrides backoff sleeping in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a client for one pipeline endpoint.
func NewClient(cfg Config) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BackoffBase: cfg.BackoffBase,
			BackoffCap:  cfg.BackoffCap,
			Retryable:   retryableStatus,
			Sleep:       cfg.Sleep,
		},
		now: time.Now,
	}
}

// request is the body sent to a pipeline under test.
type request struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
}

// Ask sends one question and returns a normalized outcome. Latency is
// end-to-end including retries. The returned error is always nil; failures
// are carried on the Outcome so callers branch without exception handling.
func (c *Client) Ask(ctx context.Context, questionText, sessionID, runID string) Outcome {
	start := c.now()
	var answer string
	var lastStatus int
	var lastErr error

	finalErr := callWithRetry(ctx, c.policy, func(ctx context.Context) attemptResult {
		status, text, err := c.attempt(ctx, questionText, sessionID, runID)
		lastStatus = status
		lastErr = err
		if err == nil {
			answer = text
		}
		return attemptResult{status: status, err: err}
	})

	latency := c.now().Sub(start).Milliseconds()
	if finalErr == nil {
		return Outcome{Answer: answer, LatencyMS: latency}
	}
	errType := classifyError(lastStatus, lastErr)
	return Outcome{
		LatencyMS: latency,
		Err:       finalErr.Error(),
		ErrType:   errType,
	}
}

func (c *Client) attempt(ctx context.Context, questionText, sessionID, runID string) (int, string, error) {
	payload, err := json.Marshal(request{Query: questionText, SessionID: sessionID, RunID: runID})
	if err != nil {
		return 0, "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, "", fmt.Errorf("http %d", resp.StatusCode)
	}
	text, err := extractAnswer(body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, text, nil
}

// retryableStatus is the retry predicate: connection failures, 5xx, and 403
// (rate limiting in disguise) retry; other 4xx and malformed bodies do not.
func retryableStatus(status int, err error) bool {
	if errors.Is(err, errEmptyBody) || errors.Is(err, errMalformedResponse) {
		return false
	}
	if status == 0 {
		return true
	}
	if status >= 500 {
		return true
	}
	return status == http.StatusForbidden
}

func classifyError(status int, err error) ErrType {
	switch {
	case errors.Is(err, errEmptyBody):
		return ErrTypeEmptyBody
	case errors.Is(err, errMalformedResponse):
		return ErrTypeMalformed
	case status == http.StatusForbidden:
		return ErrTypeRateLimit
	case status >= 500:
		return ErrTypeHTTP5xx
	case status >= 400:
		return ErrTypeHTTP4xx
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || isTimeout(err)):
		return ErrTypeTimeout
	default:
		return ErrTypeConn
	}
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
