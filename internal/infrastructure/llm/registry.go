// Package llm resolves language model providers from a priority list.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

// Pinger is implemented by providers that can check reachability cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Candidate describes one provider the resolver may pick.
type Candidate struct {
	Name       string
	Configured bool
	Build      func() ports.LanguageModel
}

type Resolver struct {
	candidates         map[string]Candidate
	healthCheck        bool
	healthCheckTimeout time.Duration
}

func NewResolver(candidates []Candidate, healthCheck bool, healthCheckTimeout time.Duration) *Resolver {
	if healthCheckTimeout <= 0 {
		healthCheckTimeout = 5 * time.Second
	}
	byName := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byName[strings.ToLower(c.Name)] = c
	}
	return &Resolver{candidates: byName, healthCheck: healthCheck, healthCheckTimeout: healthCheckTimeout}
}

// Resolve returns the first configured and, when health checks are on, reachable provider
// in priority order. Skipped providers are logged.
func (r *Resolver) Resolve(ctx context.Context, role string, priority []string) (ports.LanguageModel, string, error) {
	for _, raw := range priority {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		candidate, ok := r.candidates[name]
		if !ok {
			slog.Warn("llm_provider_skipped", "role", role, "provider", name, "reason", "unknown provider")
			continue
		}
		if !candidate.Configured || candidate.Build == nil {
			slog.Warn("llm_provider_skipped", "role", role, "provider", name, "reason", "not configured")
			continue
		}

		model := candidate.Build()
		if r.healthCheck {
			if pinger, ok := model.(Pinger); ok {
				pingCtx, cancel := context.WithTimeout(ctx, r.healthCheckTimeout)
				err := pinger.Ping(pingCtx)
				cancel()
				if err != nil {
					slog.Warn("llm_provider_skipped", "role", role, "provider", name, "reason", "health check failed", "error", err)
					continue
				}
			}
		}

		slog.Info("llm_provider_selected", "role", role, "provider", name)
		return model, name, nil
	}
	return nil, "", domain.WrapError(domain.ErrNoProvider, "resolve "+role, fmt.Errorf("tried %s", strings.Join(priority, ",")))
}
