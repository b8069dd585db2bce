package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const (
	DefaultSubject = "car-advisor.turn.completed"
	archiverGroup  = "archivers"

	drainTimeout      = 30 * time.Second
	drainPollInterval = 50 * time.Millisecond
)

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("car-advisor"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Ping reports whether the connection is currently usable.
func (q *Queue) Ping(context.Context) error {
	if q.conn == nil || !q.conn.IsConnected() {
		return domain.WrapError(domain.ErrTemporary, "nats ping", nats.ErrDisconnected)
	}
	return nil
}

func (q *Queue) PublishTurnCompleted(ctx context.Context, event domain.TurnEvent) error {
	payload, err := encodeTurnEvent(event)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyTurnEventError)
	} else {
		err = call(ctx)
	}
	return temporaryTurnEventError("publish turn event", err)
}

// SubscribeTurnCompleted blocks until ctx is done, then drains the subscription.
// Handlers run on a context that survives ctx so messages delivered during the
// drain are still archived.
func (q *Queue) SubscribeTurnCompleted(ctx context.Context, handler func(context.Context, domain.TurnEvent) error) error {
	handlerCtx, cancelHandlers := handlerContext(ctx)
	defer cancelHandlers()

	sub, err := q.conn.QueueSubscribe(q.subject, archiverGroup, func(msg *nats.Msg) {
		handleMessage(handlerCtx, msg.Data, handler)
	})
	if err != nil {
		return temporaryTurnEventError("subscribe turn events", fmt.Errorf("nats subscribe: %w", err))
	}

	if err := q.conn.Flush(); err != nil {
		return temporaryTurnEventError("subscribe turn events", fmt.Errorf("nats flush: %w", err))
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if !waitForDrain(sub, drainTimeout, drainPollInterval) {
		slog.Warn("turn_event_drain_timeout", "subject", q.subject, "timeout", drainTimeout)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// handlerContext keeps the values of ctx but not its cancellation. The
// returned cancel func ends it once the subscription has drained.
func handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(ctx))
}

type drainable interface {
	IsValid() bool
}

// waitForDrain polls until the subscription is closed or timeout passes.
func waitForDrain(sub drainable, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
	return true
}

func handleMessage(ctx context.Context, data []byte, handler func(context.Context, domain.TurnEvent) error) {
	event, err := decodeTurnEvent(data)
	if err != nil {
		slog.Error("turn_event_decode_failed", "error", err, "bytes", len(data))
		return
	}

	if err := handler(ctx, event); err != nil {
		slog.Error("turn_event_handler_failed", "event_id", event.ID, "session_id", event.SessionID, "error", err)
	}
}

func encodeTurnEvent(event domain.TurnEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode turn event: %w", err)
	}
	return payload, nil
}

func decodeTurnEvent(data []byte) (domain.TurnEvent, error) {
	var event domain.TurnEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.TurnEvent{}, fmt.Errorf("decode turn event: %w", err)
	}
	if event.ID == "" {
		return domain.TurnEvent{}, errors.New("decode turn event: missing id")
	}
	return event, nil
}
