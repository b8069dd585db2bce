package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/car-advisor/internal/config"
	"github.com/kirillkom/car-advisor/internal/core/ports"
	"github.com/kirillkom/car-advisor/internal/infrastructure/embedcache"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/groq"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/huggingface"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/car-advisor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
	"github.com/kirillkom/car-advisor/internal/infrastructure/session/memory"
	"github.com/kirillkom/car-advisor/internal/infrastructure/session/redis"
	"github.com/kirillkom/car-advisor/internal/infrastructure/vector/qdrant"
)

const defaultOllamaURL = "http://localhost:11434"

func providerCandidates(cfg config.Config, exec *resilience.Executor) []llm.Candidate {
	return []llm.Candidate{
		{
			Name:       "groq",
			Configured: cfg.GroqAPIKey != "",
			Build: func() ports.LanguageModel {
				return groq.New(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel).WithExecutor(exec)
			},
		},
		{
			Name:       "gemini",
			Configured: cfg.GeminiAPIKey != "",
			Build: func() ports.LanguageModel {
				return gemini.New(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel).WithExecutor(exec)
			},
		},
		{
			Name:       "huggingface",
			Configured: cfg.HuggingFaceAPIKey != "" && cfg.HuggingFaceEndpoint != "",
			Build: func() ports.LanguageModel {
				return huggingface.NewCompleter(cfg.HuggingFaceEndpoint, cfg.HuggingFaceAPIKey, cfg.HuggingFaceMaxNewTokens, cfg.HuggingFaceLoadingWait)
			},
		},
		{
			Name:       "ollama",
			Configured: cfg.OllamaURL != "",
			Build: func() ports.LanguageModel {
				return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(exec)
			},
		},
	}
}

func buildEmbedder(cfg config.Config, exec *resilience.Executor) (ports.Embedder, error) {
	var base ports.Embedder
	switch cfg.EmbeddingProvider {
	case "", "huggingface":
		base = huggingface.NewEmbedder(cfg.EmbeddingEndpoint, cfg.HuggingFaceAPIKey, cfg.HuggingFaceLoadingWait)
	case "ollama":
		baseURL := cfg.OllamaURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		base = ollama.New(baseURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(exec)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	return embedcache.New(base, cfg.EmbeddingCacheSize)
}

func buildSearcher(cfg config.Config, exec *resilience.Executor) (ports.VectorSearcher, func(), error) {
	switch cfg.QdrantTransport {
	case "", "rest":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantAPIKey).WithExecutor(exec), nil, nil
	case "grpc":
		searcher, err := qdrant.NewGRPCSearcher(cfg.QdrantGRPCHost, cfg.QdrantGRPCPort, cfg.QdrantCollection, cfg.QdrantAPIKey, cfg.QdrantUseTLS)
		if err != nil {
			return nil, nil, err
		}
		return searcher.WithExecutor(exec), func() { _ = searcher.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown qdrant transport %q", cfg.QdrantTransport)
	}
}

func buildSessionStore(ctx context.Context, cfg config.Config) (ports.SessionStore, func(), error) {
	switch strings.ToLower(cfg.SessionBackend) {
	case "", "memory":
		return memory.New(cfg.SessionMaxTurns, cfg.SessionTTL), nil, nil
	case "redis":
		store, err := redis.NewFromURL(cfg.RedisURL, cfg.SessionMaxTurns, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return postgres.NewSessionRepository(db, cfg.SessionMaxTurns, cfg.SessionTTL), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
