package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

func TestCompleteSendsOptions(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  ok  "}`))
	}))
	defer server.Close()

	got, err := New(server.URL, "llama3", "nomic").Complete(context.Background(), "question?", domain.GenerationParams{Temperature: 0.3, MaxTokens: 1024})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected trimmed response, got %q", got)
	}
	if payload["prompt"] != "question?" || payload["model"] != "llama3" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["temperature"] != 0.3 || options["num_predict"] != 1024.0 {
		t.Fatalf("unexpected options: %v", options)
	}
	if _, ok := options["top_p"]; ok {
		t.Fatalf("expected zero top_p to be omitted")
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "gen", "embed").EmbedQuery(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestPingUsesTags(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	if err := New(server.URL, "gen", "embed").Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if path != "/api/tags" {
		t.Fatalf("expected /api/tags, got %s", path)
	}
}
