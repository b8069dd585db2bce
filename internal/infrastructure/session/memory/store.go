// Package memory keeps session history in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

type entry struct {
	mu      sync.Mutex
	turns   []domain.Turn
	touched time.Time
}

// Store is safe for concurrent use; appends for one session id are serialized
// while different sessions proceed independently.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// New creates a store. A zero ttl keeps sessions for the life of the process.
func New(maxTurns int, ttl time.Duration) *Store {
	if maxTurns <= 0 {
		maxTurns = domain.MaxHistoryTurns
	}
	return &Store{
		sessions: make(map[string]*entry),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *Store) entry(sessionID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	return e
}

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && !e.touched.IsZero() && s.now().Sub(e.touched) > s.ttl
}

func (s *Store) History(_ context.Context, sessionID string) ([]domain.Turn, error) {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e) {
		e.turns = nil
	}
	return append([]domain.Turn(nil), e.turns...), nil
}

func (s *Store) Append(_ context.Context, sessionID string, turn domain.Turn) error {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e) {
		e.turns = nil
	}
	e.turns = domain.TrimHistory(append(e.turns, turn), s.maxTurns)
	e.touched = s.now()
	return nil
}

// Len reports how many sessions are tracked.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
