package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/car-advisor/internal/bootstrap"
	"github.com/kirillkom/car-advisor/internal/config"
	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/observability/logging"
)

const archiveTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archiver, err := bootstrap.NewArchiver(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer archiver.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", archiver.Metrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return archiver.Queue.SubscribeTurnCompleted(gctx, func(handlerCtx context.Context, event domain.TurnEvent) error {
			archiver.Metrics.StartArchive()
			archiver.Metrics.ObserveQueueLag("worker", time.Since(event.CreatedAt))
			started := time.Now()

			archiveCtx, cancel := context.WithTimeout(handlerCtx, archiveTimeout)
			defer cancel()
			err := archiver.Archive.Archive(archiveCtx, event)
			archiver.Metrics.FinishArchive("worker", time.Since(started), err)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		slog.Error("worker_stopped", "error", err)
		os.Exit(1)
	}
}
