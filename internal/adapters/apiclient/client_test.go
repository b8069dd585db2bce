package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

func TestChatSendsRequestAndDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req domain.TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "family MPV" || req.SessionID != "s1" {
			t.Errorf("unexpected request body: %+v", req)
		}
		_, _ = w.Write([]byte(`{"answer":"Try the Ertiga","recommended":[{"name":"Maruti Ertiga","price":9.5}],"sources":[]}`))
	}))
	defer server.Close()

	resp, err := New(server.URL+"/", time.Second).Chat(context.Background(), domain.TurnRequest{Query: "family MPV", SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "Try the Ertiga" || len(resp.Recommended) != 1 || resp.Recommended[0].Price != 9.5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"query is required"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Chat(context.Background(), domain.TurnRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "query is required" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	status, err := New(server.URL, time.Second).Health(context.Background())
	if err != nil || status != "healthy" {
		t.Fatalf("expected healthy, got %q (%v)", status, err)
	}
}
