package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kirillkom/car-advisor/internal/config"
	"github.com/kirillkom/car-advisor/internal/core/ports"
	"github.com/kirillkom/car-advisor/internal/core/usecase"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm"
	"github.com/kirillkom/car-advisor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
	"github.com/kirillkom/car-advisor/internal/observability/metrics"
)

// App is the wired API process.
type App struct {
	Config  config.Config
	Turns   ports.TurnService
	Metrics *metrics.HTTPServerMetrics

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{Config: cfg, Metrics: metrics.NewHTTPServerMetrics("api")}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	synthesisTemplate, err := loadSynthesisTemplate(cfg)
	if err != nil {
		return nil, err
	}

	exec := newExecutor(cfg).WithStateListener(app.Metrics.ObserveBreakerTransition)

	resolver := llm.NewResolver(providerCandidates(cfg, exec), cfg.LLMHealthCheckOnStart, cfg.LLMHealthCheckTimeout)
	primary, _, err := resolver.Resolve(ctx, "primary", cfg.LLMProviders)
	if err != nil {
		return nil, fmt.Errorf("resolve primary model: %w", err)
	}
	understandingModel, _, uerr := resolver.Resolve(ctx, "understanding", cfg.UnderstandingProviders)
	if uerr != nil {
		slog.Warn("understanding_model_fallback", "reason", uerr.Error())
		understandingModel = primary
	}
	refinementModel, _, rerr := resolver.Resolve(ctx, "refinement", cfg.RefinementProviders)
	if rerr != nil {
		slog.Warn("refinement_disabled", "reason", rerr.Error())
	}

	embedder, err := buildEmbedder(cfg, exec)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	searcher, closeSearcher, err := buildSearcher(cfg, exec)
	if err != nil {
		return nil, fmt.Errorf("init vector searcher: %w", err)
	}
	app.onClose(closeSearcher)

	sessions, closeSessions, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	app.onClose(closeSessions)

	turns := usecase.NewTurnUseCase(
		sessions,
		usecase.NewQueryUnderstanding(understandingModel),
		usecase.NewQueryExpander(primary),
		usecase.NewRetrievalGateway(embedder, searcher, cfg.RetrievalK),
		usecase.NewAnswerSynthesizer(primary, synthesisTemplate),
		usecase.NewAnswerRefiner(refinementModel),
	).WithObserver(app.Metrics)

	if cfg.TurnEventsEnabled {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: exec})
		if err != nil {
			return nil, fmt.Errorf("init turn event queue: %w", err)
		}
		app.onClose(queue.Close)
		turns.WithEventPublisher(queue)
	}

	app.Turns = turns
	return app, nil
}

// loadSynthesisTemplate prefers SYNTHESIS_PROMPT_PATH over the inline
// SYNTHESIS_TEMPLATE. An empty result selects the built-in template.
func loadSynthesisTemplate(cfg config.Config) (string, error) {
	if cfg.SynthesisPromptPath == "" {
		return cfg.SynthesisTemplate, nil
	}
	raw, err := os.ReadFile(cfg.SynthesisPromptPath)
	if err != nil {
		return "", fmt.Errorf("read synthesis prompt %s: %w", cfg.SynthesisPromptPath, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", fmt.Errorf("synthesis prompt %s is empty", cfg.SynthesisPromptPath)
	}
	return string(raw), nil
}

func (a *App) onClose(fn func()) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newExecutor(cfg config.Config) *resilience.Executor {
	return resilience.NewExecutor(resilience.UpstreamConfig(cfg.ResilienceBreakerEnable))
}
