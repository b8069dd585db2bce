package domain

import "time"

// MaxHistoryTurns bounds the per-session history; older turns are dropped first.
const MaxHistoryTurns = 10

// DefaultSessionID is used when a turn arrives without a session id.
const DefaultSessionID = "default"

type Turn struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// TrimHistory keeps the newest max turns.
func TrimHistory(turns []Turn, max int) []Turn {
	if max <= 0 {
		max = MaxHistoryTurns
	}
	if len(turns) <= max {
		return turns
	}
	return append([]Turn(nil), turns[len(turns)-max:]...)
}

// LastTurns returns up to n of the most recent turns in chronological order.
func LastTurns(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
