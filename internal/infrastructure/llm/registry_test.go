package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

type modelStub struct {
	name    string
	pingErr error
}

func (m *modelStub) Complete(context.Context, string, domain.GenerationParams) (string, error) {
	return m.name, nil
}

func (m *modelStub) Ping(context.Context) error {
	return m.pingErr
}

func candidate(name string, configured bool, pingErr error) Candidate {
	return Candidate{
		Name:       name,
		Configured: configured,
		Build: func() ports.LanguageModel {
			return &modelStub{name: name, pingErr: pingErr}
		},
	}
}

func TestResolvePicksFirstConfigured(t *testing.T) {
	r := NewResolver([]Candidate{
		candidate("groq", false, nil),
		candidate("gemini", true, nil),
		candidate("ollama", true, nil),
	}, false, time.Second)

	_, name, err := r.Resolve(context.Background(), "primary", []string{"groq", "gemini", "ollama"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "gemini" {
		t.Fatalf("expected gemini, got %s", name)
	}
}

func TestResolveSkipsFailedHealthCheck(t *testing.T) {
	r := NewResolver([]Candidate{
		candidate("huggingface", true, errors.New("410 gone")),
		candidate("ollama", true, nil),
	}, true, time.Second)

	_, name, err := r.Resolve(context.Background(), "primary", []string{"huggingface", "ollama"})
	if err != nil || name != "ollama" {
		t.Fatalf("expected ollama, got %q (%v)", name, err)
	}
}

func TestResolveNoProvider(t *testing.T) {
	r := NewResolver([]Candidate{candidate("groq", false, nil)}, false, time.Second)

	_, _, err := r.Resolve(context.Background(), "refinement", []string{"groq", "unknown"})
	if !domain.IsKind(err, domain.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}
