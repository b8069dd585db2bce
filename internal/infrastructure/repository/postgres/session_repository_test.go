package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kirillkom/car-advisor/internal/core/domain"
)

func newSessionRepoWithMock(t *testing.T, maxTurns int, ttl time.Duration, now time.Time) (*SessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewSessionRepository(db, maxTurns, ttl)
	repo.now = func() time.Time { return now }
	return repo, mock, func() { _ = db.Close() }
}

func TestSessionHistoryMissingSessionIsEmpty(t *testing.T) {
	repo, mock, cleanup := newSessionRepoWithMock(t, 10, 0, time.Now())
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT turns, updated_at")).
		WithArgs("s1").
		WillReturnError(sql.ErrNoRows)

	turns, err := repo.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionHistoryDecodesTurns(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo, mock, cleanup := newSessionRepoWithMock(t, 10, time.Hour, now)
	defer cleanup()

	raw, _ := json.Marshal([]domain.Turn{{Query: "suv under 10 lakhs", Answer: "Try the Creta"}})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT turns, updated_at")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"turns", "updated_at"}).AddRow(raw, now.Add(-time.Minute)))

	turns, err := repo.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 1 || turns[0].Answer != "Try the Creta" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestSessionHistoryExpiredIsEmpty(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo, mock, cleanup := newSessionRepoWithMock(t, 10, time.Hour, now)
	defer cleanup()

	raw, _ := json.Marshal([]domain.Turn{{Query: "old", Answer: "old"}})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT turns, updated_at")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"turns", "updated_at"}).AddRow(raw, now.Add(-2*time.Hour)))

	turns, err := repo.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected expired session to be empty, got %+v", turns)
	}
}

func TestSessionAppendTrimsToMaxTurns(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo, mock, cleanup := newSessionRepoWithMock(t, 2, 0, now)
	defer cleanup()

	existing, _ := json.Marshal([]domain.Turn{{Query: "q1"}, {Query: "q2"}})
	expected, _ := json.Marshal([]domain.Turn{{Query: "q2"}, {Query: "q3"}})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_sessions")).
		WithArgs("s1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"turns", "updated_at"}).AddRow(existing, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_sessions")).
		WithArgs("s1", expected, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Append(context.Background(), "s1", domain.Turn{Query: "q3"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionAppendRollsBackOnUpdateError(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo, mock, cleanup := newSessionRepoWithMock(t, 10, 0, now)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_sessions")).
		WithArgs("s1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"turns", "updated_at"}).AddRow([]byte("[]"), now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_sessions")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Append(context.Background(), "s1", domain.Turn{Query: "q"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
