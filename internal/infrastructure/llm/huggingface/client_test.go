package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

func TestCompleteRetriesOnceWhileLoading(t *testing.T) {
	var calls atomic.Int32
	var req generationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":"Model is currently loading"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"generated_text":" The Creta fits. "}]`))
	}))
	defer server.Close()

	c := NewCompleter(server.URL, "token", 0, time.Millisecond)
	got, err := c.Complete(context.Background(), "prompt", domain.GenerationParams{Temperature: 0.4, TopP: 0.95})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "The Creta fits." {
		t.Fatalf("unexpected completion %q", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
	if req.Parameters.MaxNewTokens != DefaultMaxNewTokens || req.Parameters.ReturnFullText {
		t.Fatalf("unexpected parameters: %+v", req.Parameters)
	}
}

func TestCompleteGivesUpAfterSecondLoadingResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewCompleter(server.URL, "token", 0, time.Millisecond).Complete(context.Background(), "p", domain.GenerationParams{})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestCompleteGoneIsFatal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	_, err := NewCompleter(server.URL, "token", 0, time.Millisecond).Complete(context.Background(), "p", domain.GenerationParams{})
	if !domain.IsKind(err, domain.ErrModelGone) {
		t.Fatalf("expected model gone, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry on 410, got %d calls", calls.Load())
	}
}

func TestDecodeGenerationShapes(t *testing.T) {
	cases := map[string]string{
		`[{"generated_text":"a"}]`: "a",
		`{"text":"b"}`:             "b",
		`{"summary_text":"c"}`:     "c",
	}
	for raw, want := range cases {
		got, err := decodeGeneration(json.RawMessage(raw))
		if err != nil || got != want {
			t.Fatalf("decodeGeneration(%s) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := decodeGeneration(json.RawMessage(`{"foo":1}`)); err == nil {
		t.Fatalf("expected error for unknown shape")
	}
}

func TestEmbedQueryAcceptsNestedVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[0.1, 0.2, 0.3]]`))
	}))
	defer server.Close()

	got, err := NewEmbedder(server.URL, "", time.Millisecond).EmbedQuery(context.Background(), "SUV")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(got) != 3 || got[2] != 0.3 {
		t.Fatalf("unexpected vector %v", got)
	}
}

func TestEmbedQueryAcceptsFlatVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[0.5, 0.25]`))
	}))
	defer server.Close()

	got, err := NewEmbedder(server.URL, "", time.Millisecond).EmbedQuery(context.Background(), "SUV")
	if err != nil || len(got) != 2 {
		t.Fatalf("unexpected result %v (%v)", got, err)
	}
}
