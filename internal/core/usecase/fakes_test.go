package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

type modelFake struct {
	responses []string
	err       error
	prompts   []string
	params    []domain.GenerationParams
}

func (f *modelFake) Complete(_ context.Context, prompt string, params domain.GenerationParams) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.params = append(f.params, params)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

type embedderFake struct {
	queries []string
	err     error
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type searcherFake struct {
	items      []domain.RetrievedItem
	errs       []error
	predicates []domain.Predicate
	limits     []int
}

func (f *searcherFake) Search(_ context.Context, _ []float32, predicate domain.Predicate, limit int) ([]domain.RetrievedItem, error) {
	f.predicates = append(f.predicates, predicate)
	f.limits = append(f.limits, limit)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.items, nil
}

type sessionStoreFake struct {
	mu         sync.Mutex
	turns      map[string][]domain.Turn
	historyErr error
	appendErr  error
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{turns: map[string][]domain.Turn{}}
}

func (f *sessionStoreFake) History(_ context.Context, sessionID string) ([]domain.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]domain.Turn(nil), f.turns[sessionID]...), nil
}

func (f *sessionStoreFake) Append(_ context.Context, sessionID string, turn domain.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns[sessionID] = domain.TrimHistory(append(f.turns[sessionID], turn), domain.MaxHistoryTurns)
	return nil
}

type publisherFake struct {
	events []domain.TurnEvent
	err    error
}

func (f *publisherFake) PublishTurnCompleted(_ context.Context, event domain.TurnEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type observerFake struct {
	stages      []string
	outcomes    []string
	failOpen    int
	expansions  []bool
	refinements []string
}

func (f *observerFake) ObserveStage(stage string, _ time.Duration, _ error) {
	f.stages = append(f.stages, stage)
}
func (f *observerFake) ObserveTurn(outcome string, _ int, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}
func (f *observerFake) ObserveFailOpen() { f.failOpen++ }
func (f *observerFake) ObserveExpansion(applied bool) { f.expansions = append(f.expansions, applied) }
func (f *observerFake) ObserveRefinement(outcome string) {
	f.refinements = append(f.refinements, outcome)
}

func scorePtr(v float64) *float64 { return &v }
