package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"copilot-salud-backend/config"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "llama-3.3-70b-versatile"
	// DefaultBaseURL targets the Groq chat completions endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"

	maxConcurrent  = 5
	maxAttempts    = 3
	attemptTimeout = 30 * time.Second
	temperature    = 0.2
	maxTokens      = 2000
)

// UpstreamError carries the HTTP status of a failed completion call.
// Permanent errors (bad request, invalid key) are not retried.
type UpstreamError struct {
	StatusCode int
	Message    string
	Permanent  bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
}

// ErrEmptyCompletion is returned when the upstream answers without
// any choice content.
var ErrEmptyCompletion = errors.New("upstream returned no completion choices")

// Client produces raw completion text for an assembled prompt.
type Client interface {
	Complete(ctx context.Context, systemText, userText string) (string, error)
}

type groqClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	sem        *semaphore.Weighted
	baseDelay  time.Duration
	timeout    time.Duration
}

// ClientOption configures the client.
type ClientOption func(*groqClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *groqClient) { c.httpClient = hc }
}

// WithBaseDelay overrides the first retry delay.
func WithBaseDelay(d time.Duration) ClientOption {
	return func(c *groqClient) { c.baseDelay = d }
}

// WithAttemptTimeout overrides the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) ClientOption {
	return func(c *groqClient) { c.timeout = d }
}

// NewClient builds a Groq chat completions client. At most five
// requests are in flight at once; the rest queue on a semaphore.
func NewClient(cfg *config.Config, opts ...ClientOption) Client {
	c := &groqClient{
		apiKey:     cfg.Groq.APIKey,
		model:      cfg.Groq.Model,
		baseURL:    cfg.Groq.BaseURL,
		httpClient: &http.Client{},
		sem:        semaphore.NewWeighted(maxConcurrent),
		baseDelay:  time.Second,
		timeout:    attemptTimeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *groqClient) Complete(ctx context.Context, systemText, userText string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	payload := ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemText},
			{Role: "user", Content: userText},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := c.doAttempt(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err

		var upstream *UpstreamError
		if errors.As(err, &upstream) && upstream.Permanent {
			log.Error().Err(err).Msg("Permanent upstream error, not retrying")
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		delay := bo.NextBackOff()
		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Completion attempt failed")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *groqClient) doAttempt(ctx context.Context, body []byte) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := string(raw)
		var parsed ChatResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		return "", &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Permanent:  isPermanentStatus(resp.StatusCode),
		}
	}

	var parsed ChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return parsed.Choices[0].Message.Content, nil
}

// isPermanentStatus treats client errors other than 429 as not worth
// retrying. 429 and every 5xx are transient.
func isPermanentStatus(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}
