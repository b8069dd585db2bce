package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

type TranscriptRepository struct {
	db *sql.DB
}

func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// SaveTurn is idempotent on event id so redelivered events are harmless.
func (r *TranscriptRepository) SaveTurn(ctx context.Context, event domain.TurnEvent) error {
	filtersJSON, err := json.Marshal(event.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	recommended := event.Recommended
	if recommended == nil {
		recommended = []string{}
	}
	recommendedJSON, err := json.Marshal(recommended)
	if err != nil {
		return fmt.Errorf("marshal recommended: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_transcripts (
	id, session_id, request_id, query, optimized_query, answer, filters, recommended, refined, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, event.SessionID, nullableString(event.RequestID), event.Query, event.OptimizedQuery, event.Answer,
		filtersJSON, recommendedJSON, event.Refined, event.DurationMs, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
