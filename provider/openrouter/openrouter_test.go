package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/intervu-app/intervu/provider"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := New(Options{
		APIKey:       "test-key",
		BaseURL:      url,
		DefaultModel: "test/model",
		Retry:        provider.RetryPolicy{MaxRetries: retries, Backoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func completionBody(text string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, text)
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, completionBody("Tell me about yourself."))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	text, err := c.Complete(context.Background(), "", []provider.Message{
		{Role: provider.RoleSystem, Content: "You are an interviewer."},
		{Role: provider.RoleUser, Content: "Please ask me the first question."},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Tell me about yourself." {
		t.Fatalf("unexpected completion: %q", text)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotReq.Model != "test/model" {
		t.Fatalf("expected default model, got %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != provider.RoleSystem {
		t.Fatalf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionBody("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	text, err := c.Complete(context.Background(), "m", []provider.Message{{Role: provider.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "ok" || calls != 3 {
		t.Fatalf("expected success on third call, got %q after %d calls", text, calls)
	}
}

func TestCompleteExhaustsRetryBudget(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	_, err := c.Complete(context.Background(), "m", []provider.Message{{Role: provider.RoleUser, Content: "hi"}})
	if !errors.Is(err, provider.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls for 1 retry, got %d", calls)
	}
}

func TestCompleteDoesNotRetryAuthFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	_, err := c.Complete(context.Background(), "m", []provider.Message{{Role: provider.RoleUser, Content: "hi"}})
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("auth failures must not be retried, got %d calls", calls)
	}
}

func TestCompleteClassifiesResponses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"forbidden", http.StatusForbidden, "", provider.ErrAuth},
		{"rate limited", http.StatusTooManyRequests, "", provider.ErrRateLimited},
		{"bad gateway", http.StatusBadGateway, "", provider.ErrUpstreamUnavailable},
		{"unexpected status", http.StatusTeapot, "", provider.ErrInvalidResponse},
		{"no choices", http.StatusOK, `{"choices":[]}`, provider.ErrInvalidResponse},
		{"empty content", http.StatusOK, completionBody("   "), provider.ErrInvalidResponse},
		{"not json", http.StatusOK, "<html>", provider.ErrInvalidResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, 0)
			_, err := c.Complete(context.Background(), "m", []provider.Message{{Role: provider.RoleUser, Content: "hi"}})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCompleteRejectsEmptyConversation(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", 0)
	if _, err := c.Complete(context.Background(), "m", nil); !errors.Is(err, provider.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestCompleteStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	_, err := c.Complete(ctx, "m", []provider.Message{{Role: provider.RoleUser, Content: "hi"}})
	if !errors.Is(err, provider.ErrUpstreamUnavailable) {
		t.Fatalf("expected wrapped cancellation, got %v", err)
	}
}
