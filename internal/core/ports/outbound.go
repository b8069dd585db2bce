package ports

import (
	"context"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

// SessionStore keeps bounded per-session history.
// Append must read, append, trim and write atomically for a given session id.
type SessionStore interface {
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Append(ctx context.Context, sessionID string, turn domain.Turn) error
}

// Embedder builds vectors for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs nearest-neighbour search over the catalog index.
// Errors caused by a predicate on an unindexed field wrap domain.ErrUnindexedField.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, predicate domain.Predicate, limit int) ([]domain.RetrievedItem, error)
}

// LanguageModel turns a prompt into completion text.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error)
}

// TurnEventPublisher announces committed turns.
type TurnEventPublisher interface {
	PublishTurnCompleted(ctx context.Context, event domain.TurnEvent) error
}

// TranscriptRepository stores archived turns.
type TranscriptRepository interface {
	SaveTurn(ctx context.Context, event domain.TurnEvent) error
}

// TurnObserver receives pipeline measurements.
type TurnObserver interface {
	ObserveStage(stage string, duration time.Duration, err error)
	ObserveTurn(outcome string, recommendations int, duration time.Duration)
	ObserveFailOpen()
	ObserveExpansion(applied bool)
	ObserveRefinement(outcome string)
}
