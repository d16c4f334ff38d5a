// Package llm provides the Gemini integration that turns a session into a SOAP chart.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/f3rmion/mediscribe/internal/logging"
	"github.com/f3rmion/mediscribe/internal/prompt"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-preview-09-2025"

	// maxErrorBody caps how much of a failed response body is kept for logs.
	maxErrorBody = 2048
)

// ErrNotConfigured is returned by NewClient when no API key is available.
var ErrNotConfigured = errors.New("gemini API key not set")

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
	HTTPClient     *http.Client
}

// Client is a Gemini generateContent client with bounded retry.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	httpClient     *http.Client
	attemptTimeout time.Duration
	retry          RetryPolicy
	generator      *prompt.Generator
	sleep          Sleeper
	logger         *zap.SugaredLogger
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper replaces the backoff sleeper, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithGenerator replaces the prompt generator.
func WithGenerator(g *prompt.Generator) Option {
	return func(c *Client) {
		if g != nil {
			c.generator = g
		}
	}
}

// part, content and request mirror the generateContent wire format.
type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type request struct {
	Contents          []content `json:"contents"`
	SystemInstruction content   `json:"systemInstruction"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient creates a new Gemini client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		httpClient:     httpClient,
		attemptTimeout: cfg.AttemptTimeout,
		retry:          NewRetryPolicy(cfg.MaxAttempts, cfg.InitialBackoff),
		generator:      prompt.NewGenerator(),
		sleep:          sleepContext,
		logger:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateChart renders the prompt for req and returns the generated chart text.
// Transport failures and non-2xx responses are retried with exponential
// backoff; a response without candidate text fails immediately.
func (c *Client) GenerateChart(ctx context.Context, req prompt.Request) (string, error) {
	p, err := c.generator.Generate(req)
	if err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}

	body, err := json.Marshal(request{
		Contents:          []content{{Parts: []part{{Text: p.User}}}},
		SystemInstruction: content{Parts: []part{{Text: p.System}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var (
		lastErr  error
		attempts int
	)
	for attempts < c.retry.MaxAttempts {
		attempts++

		text, err := c.attempt(ctx, body)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrMalformedResponse) {
			return "", &GenerationError{Kind: FailureMalformed, Attempts: attempts, Err: err}
		}
		lastErr = err

		if attempts >= c.retry.MaxAttempts || ctx.Err() != nil {
			break
		}

		delay := c.retry.Delay(attempts)
		c.logger.Warnw("chart generation attempt failed, retrying",
			"attempt", attempts,
			"max_attempts", c.retry.MaxAttempts,
			"delay", delay,
			"error", err)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return "", &GenerationError{Kind: FailureRequest, Attempts: attempts, Err: lastErr}
}

// attempt performs a single bounded request.
func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidate content", ErrMalformedResponse)
	}
	text := strings.TrimSpace(apiResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate text", ErrMalformedResponse)
	}
	return text, nil
}

func (c *Client) endpoint() string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	return fmt.Sprintf("%s/models/%s:generateContent?%s", c.baseURL, url.PathEscape(c.model), q.Encode())
}

func errorMessage(raw []byte) string {
	var e apiError
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
