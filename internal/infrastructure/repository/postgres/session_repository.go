package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

// SessionRepository stores each session's bounded history as one JSONB array.
type SessionRepository struct {
	db       *sql.DB
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionRepository(db *sql.DB, maxTurns int, ttl time.Duration) *SessionRepository {
	if maxTurns <= 0 {
		maxTurns = domain.MaxHistoryTurns
	}
	return &SessionRepository{db: db, maxTurns: maxTurns, ttl: ttl, now: time.Now}
}

func (r *SessionRepository) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT turns, updated_at
FROM chat_sessions
WHERE session_id = $1
`, sessionID)

	var raw []byte
	var updatedAt time.Time
	if err := row.Scan(&raw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	if r.stale(updatedAt) {
		return nil, nil
	}
	return decodeTurns(raw)
}

// Append locks the session row for the read-modify-write.
func (r *SessionRepository) Append(ctx context.Context, sessionID string, turn domain.Turn) error {
	now := r.now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_sessions (session_id, turns, created_at, updated_at)
VALUES ($1, '[]'::jsonb, $2, $2)
ON CONFLICT (session_id) DO NOTHING
`, sessionID, now); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	var raw []byte
	var updatedAt time.Time
	if err := tx.QueryRowContext(ctx, `
SELECT turns, updated_at
FROM chat_sessions
WHERE session_id = $1
FOR UPDATE
`, sessionID).Scan(&raw, &updatedAt); err != nil {
		return fmt.Errorf("lock session: %w", err)
	}

	var turns []domain.Turn
	if !r.stale(updatedAt) {
		if turns, err = decodeTurns(raw); err != nil {
			return err
		}
	}
	encoded, err := json.Marshal(domain.TrimHistory(append(turns, turn), r.maxTurns))
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE chat_sessions
SET turns = $2, updated_at = $3
WHERE session_id = $1
`, sessionID, encoded, now); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) stale(updatedAt time.Time) bool {
	return r.ttl > 0 && r.now().Sub(updatedAt) > r.ttl
}

func decodeTurns(raw []byte) ([]domain.Turn, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var turns []domain.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode session turns: %w", err)
	}
	return turns, nil
}
