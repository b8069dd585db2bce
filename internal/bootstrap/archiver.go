package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/car-advisor/internal/config"
	"github.com/kirillkom/car-advisor/internal/core/ports"
	"github.com/kirillkom/car-advisor/internal/core/usecase"
	"github.com/kirillkom/car-advisor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/car-advisor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/car-advisor/internal/observability/metrics"
)

// Archiver is the wired worker process that persists turn events.
type Archiver struct {
	Config  config.Config
	Queue   *nats.Queue
	Archive ports.TurnArchiver
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewArchiver(ctx context.Context, cfg config.Config) (*Archiver, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: newExecutor(cfg)})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init turn event queue: %w", err)
	}

	return &Archiver{
		Config:  cfg,
		Queue:   queue,
		Archive: usecase.NewArchiveTurnUseCase(postgres.NewTranscriptRepository(db)),
		Metrics: metrics.NewWorkerMetrics("worker"),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *Archiver) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
