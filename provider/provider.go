package provider

import (
	"context"
	"errors"
	"time"
)

// Message roles, matching the chat-completions wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the interface the interview engine talks to. Implementations
// send the prompt plus prior turns to an external completion API and
// return the generated text. model may be empty to use the provider's
// default.
type Provider interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// Gateway failure classes. Callers branch with errors.Is.
var (
	// ErrAuth means the credentials were rejected. Not retryable.
	ErrAuth = errors.New("completion api rejected credentials")
	// ErrRateLimited means the provider throttled us. Retryable after backoff.
	ErrRateLimited = errors.New("completion api rate limited")
	// ErrUpstreamUnavailable covers network failures, timeouts and 5xx. Retryable.
	ErrUpstreamUnavailable = errors.New("completion api unavailable")
	// ErrInvalidResponse means the call succeeded but the completion was
	// malformed or empty.
	ErrInvalidResponse = errors.New("completion api returned invalid response")
)

// Retryable reports whether the error class is worth a bounded retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamUnavailable)
}

// RetryPolicy bounds how a client retries transient failures: at most
// MaxRetries extra attempts, exponential backoff capped at MaxBackoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryPolicy matches the product contract: one bounded retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1, Backoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// Delay returns the backoff before the given retry attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Backoff * time.Duration(1<<attempt)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}
