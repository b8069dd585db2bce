// Package embedcache memoizes query embeddings in a bounded LRU.
package embedcache

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/car-advisor/internal/core/ports"
)

type Embedder struct {
	next  ports.Embedder
	cache *lru.Cache[string, []float32]
}

// New wraps next with an LRU of size entries. A non-positive size disables caching.
func New(next ports.Embedder, size int) (ports.Embedder, error) {
	if size <= 0 {
		return next, nil
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Embedder{next: next, cache: cache}, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := strings.TrimSpace(text)
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}
	v, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, v)
	return v, nil
}
