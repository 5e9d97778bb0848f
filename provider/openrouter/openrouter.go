package openrouter

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

	"go.uber.org/zap"

	"github.com/intervu-app/intervu/provider"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client implements provider.Provider against the OpenRouter
// chat-completions API (OpenAI-compatible wire format).
type Client struct {
	apiKey       string
	baseURL      string
	defaultModel string
	temperature  float64
	maxTokens    int
	retry        provider.RetryPolicy
	httpClient   *http.Client
	logger       *zap.Logger

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures a Client. APIKey is the only required field.
type Options struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	Retry        provider.RetryPolicy
}

// New creates an OpenRouter client.
func New(opts Options, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openrouter api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.Backoff <= 0 {
		opts.Retry = provider.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		defaultModel: opts.DefaultModel,
		temperature:  opts.Temperature,
		maxTokens:    opts.MaxTokens,
		retry:        opts.Retry,
		httpClient:   &http.Client{Timeout: opts.Timeout},
		logger:       logger,
		sleep:        sleepCtx,
	}, nil
}

// request represents a request to the chat-completions API
type request struct {
	Model       string             `json:"model"`
	Messages    []provider.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

// response represents a chat-completions response
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation to OpenRouter and returns the generated
// text. Transient failures get at most the policy's bounded retries; the
// last classified error is surfaced.
func (c *Client) Complete(ctx context.Context, model string, messages []provider.Message) (string, error) {
	if model == "" {
		model = c.defaultModel
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", provider.ErrInvalidResponse)
	}

	var lastErr error
	attempts := c.retry.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := c.send(ctx, model, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !provider.Retryable(err) || attempt == attempts-1 {
			break
		}
		delay := c.retry.Delay(attempt)
		c.logger.Warn("completion request failed, retrying",
			zap.String("model", model),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %v", provider.ErrUpstreamUnavailable, err)
		}
	}
	return "", lastErr
}

func (c *Client) send(ctx context.Context, model string, messages []provider.Message) (string, error) {
	body, err := json.Marshal(request{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// timeouts and connection failures are both "try again later"
		return "", fmt.Errorf("%w: %v", provider.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", provider.ErrInvalidResponse)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", provider.ErrInvalidResponse)
	}
	return text, nil
}

func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", provider.ErrAuth, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimited, resp.Status)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s: %s", provider.ErrUpstreamUnavailable, resp.Status, string(snippet))
	default:
		return fmt.Errorf("%w: unexpected status %s: %s", provider.ErrInvalidResponse, resp.Status, string(snippet))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
