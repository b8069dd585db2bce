package llmhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

func TestPostJSONIncludesBodyInStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadRequest)
	}))
	defer server.Close()

	err := New("groq", server.URL, time.Second).PostJSON(context.Background(), "/x", map[string]any{}, &struct{}{}, "chat")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected body in error, got %v", err)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", StatusCode(err))
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary")
	}
}

func TestPostJSONRetriesThroughExecutor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing auth header")
		}
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	client := New("groq", server.URL, time.Second).SetHeader("Authorization", "Bearer secret").WithExecutor(exec, nil)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.PostJSON(context.Background(), "/x", map[string]any{"a": 1}, &out, "chat"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.OK || calls.Load() != 2 {
		t.Fatalf("expected success on second call, calls=%d", calls.Load())
	}
}

func TestRetryableStatusIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := New("gemini", server.URL, time.Second).GetJSON(context.Background(), "/models", nil, "ping")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestClassifyContextErrors(t *testing.T) {
	class := Classify(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("expected canceled context to be neither retried nor recorded")
	}
	if !Classify(errors.New("other")).RecordFailure {
		t.Fatalf("expected unknown errors to be recorded")
	}
}
