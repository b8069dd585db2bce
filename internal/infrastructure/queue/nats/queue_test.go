package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/nats-io/nats.go"
)

func TestTurnEventRoundTripThroughHandler(t *testing.T) {
	event := domain.TurnEvent{
		ID:          "evt-1",
		SessionID:   "s1",
		Query:       "diesel suv",
		Answer:      "Look at the XUV700",
		Recommended: []string{"Mahindra XUV700"},
		CreatedAt:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	payload, err := encodeTurnEvent(event)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	var got domain.TurnEvent
	handleMessage(context.Background(), payload, func(_ context.Context, e domain.TurnEvent) error {
		got = e
		return nil
	})
	if got.ID != "evt-1" || got.SessionID != "s1" || len(got.Recommended) != 1 {
		t.Fatalf("unexpected event: %+v", got)
	}
	if !got.CreatedAt.Equal(event.CreatedAt) {
		t.Fatalf("expected created_at to survive, got %v", got.CreatedAt)
	}
}

func TestHandleMessageSkipsMalformedPayload(t *testing.T) {
	called := false
	handler := func(context.Context, domain.TurnEvent) error {
		called = true
		return nil
	}
	handleMessage(context.Background(), []byte("not json"), handler)
	handleMessage(context.Background(), []byte(`{"session_id":"s1"}`), handler)
	if called {
		t.Fatalf("handler must not run for malformed events")
	}
}

func TestClassifyTurnEventError(t *testing.T) {
	if class := classifyTurnEventError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected closed connection to be retryable, got %+v", class)
	}
	if class := classifyTurnEventError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("expected canceled context to be ignored")
	}
	if class := classifyTurnEventError(nats.ErrMaxPayload); class.Retryable || class.RecordFailure {
		t.Fatalf("expected oversized event to be permanent without tripping the breaker, got %+v", class)
	}
	if class := classifyTurnEventError(errors.New("boom")); class.Retryable || !class.RecordFailure {
		t.Fatalf("expected unknown error to count as a failure, got %+v", class)
	}
}

func TestTemporaryTurnEventErrorCarriesOperation(t *testing.T) {
	err := temporaryTurnEventError("publish turn event", nats.ErrNoServers)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary wrap, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish turn event") {
		t.Fatalf("expected operation in error, got %v", err)
	}
	plain := errors.New("boom")
	if temporaryTurnEventError("publish turn event", plain) != plain {
		t.Fatalf("expected permanent error unchanged")
	}
	if temporaryTurnEventError("publish turn event", nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
}

func TestHandlerContextOutlivesSubscription(t *testing.T) {
	type key struct{}
	parent, cancelParent := context.WithCancel(context.WithValue(context.Background(), key{}, "worker"))
	handlerCtx, cancelHandlers := handlerContext(parent)
	defer cancelHandlers()

	cancelParent()

	payload, err := encodeTurnEvent(domain.TurnEvent{ID: "evt-late", SessionID: "s1"})
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	var handled string
	handleMessage(handlerCtx, payload, func(ctx context.Context, e domain.TurnEvent) error {
		if ctx.Err() != nil {
			t.Fatalf("handler context cancelled during drain: %v", ctx.Err())
		}
		if ctx.Value(key{}) != "worker" {
			t.Fatalf("expected parent values to survive")
		}
		handled = e.ID
		return nil
	})
	if handled != "evt-late" {
		t.Fatalf("expected message delivered after cancel to be handled, got %q", handled)
	}

	cancelHandlers()
	if handlerCtx.Err() == nil {
		t.Fatalf("expected handler context to end once draining finishes")
	}
}

type subscriptionFake struct {
	validFor int
	checks   int
}

func (s *subscriptionFake) IsValid() bool {
	s.checks++
	return s.checks <= s.validFor
}

func TestWaitForDrain(t *testing.T) {
	sub := &subscriptionFake{validFor: 3}
	if !waitForDrain(sub, time.Second, time.Millisecond) {
		t.Fatalf("expected drain to complete")
	}
	if sub.checks != 4 {
		t.Fatalf("expected polling until invalid, got %d checks", sub.checks)
	}

	stuck := &subscriptionFake{validFor: 1 << 30}
	if waitForDrain(stuck, 5*time.Millisecond, time.Millisecond) {
		t.Fatalf("expected timeout for a subscription that never drains")
	}
}
