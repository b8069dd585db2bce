package embedcache

import (
	"context"
	"errors"
	"testing"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{1, 2}, nil
}

func TestEmbedQueryCachesByTrimmedText(t *testing.T) {
	next := &countingEmbedder{}
	e, err := New(next, 4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, q := range []string{"SUV under 10 lakhs", "  SUV under 10 lakhs ", "SUV under 10 lakhs"} {
		if _, err := e.EmbedQuery(context.Background(), q); err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", next.calls)
	}
}

func TestEmbedQueryDoesNotCacheErrors(t *testing.T) {
	next := &countingEmbedder{err: errors.New("down")}
	e, _ := New(next, 4)

	_, _ = e.EmbedQuery(context.Background(), "q")
	_, _ = e.EmbedQuery(context.Background(), "q")
	if next.calls != 2 {
		t.Fatalf("expected errors to bypass cache, got %d calls", next.calls)
	}
}

func TestNewDisabled(t *testing.T) {
	next := &countingEmbedder{}
	e, err := New(next, 0)
	if err != nil || e != next {
		t.Fatalf("expected passthrough embedder when size is 0")
	}
}
