// Package redis keeps session history in Redis so several API replicas can
// share conversations.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

const (
	keyPrefix         = "car-advisor:session:"
	maxAppendAttempts = 5
)

var errAppendContention = errors.New("session append lost optimistic lock too many times")

type Store struct {
	client   *goredis.Client
	maxTurns int
	ttl      time.Duration
}

func NewFromURL(url string, maxTurns int, ttl time.Duration) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(goredis.NewClient(opts), maxTurns, ttl), nil
}

// New wraps an existing client. A zero ttl stores sessions without expiry.
func New(client *goredis.Client, maxTurns int, ttl time.Duration) *Store {
	if maxTurns <= 0 {
		maxTurns = domain.MaxHistoryTurns
	}
	return &Store{client: client, maxTurns: maxTurns, ttl: ttl}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	raw, err := s.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "redis get session", err)
	}
	return decodeTurns(raw)
}

// Append reads, appends, trims and writes the session under WATCH so a
// concurrent writer forces a retry instead of losing a turn.
func (s *Store) Append(ctx context.Context, sessionID string, turn domain.Turn) error {
	key := keyPrefix + sessionID

	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		var turns []domain.Turn
		if len(raw) > 0 {
			if turns, err = decodeTurns(raw); err != nil {
				return err
			}
		}

		encoded, err := json.Marshal(domain.TrimHistory(append(turns, turn), s.maxTurns))
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return domain.WrapError(domain.ErrTemporary, "redis append session", err)
	}
	return domain.WrapError(domain.ErrTemporary, "redis append session", errAppendContention)
}

func decodeTurns(raw []byte) ([]domain.Turn, error) {
	var turns []domain.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return turns, nil
}
