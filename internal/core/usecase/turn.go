package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

const (
	stageHistory    = "history"
	stageUnderstand = "understand"
	stageExpand     = "expand"
	stageRetrieve   = "retrieve"
	stageSynthesize = "synthesize"
	stageRefine     = "refine"
	stageCommit     = "commit"
)

// Turn outcomes reported to the observer.
const (
	TurnOutcomeOK      = "ok"
	TurnOutcomeInvalid = "invalid"
	TurnOutcomeFailed  = "failed"
)

// TurnUseCase runs one conversational turn end to end and commits it to the
// session only after an answer exists.
type TurnUseCase struct {
	sessions      ports.SessionStore
	understanding *QueryUnderstanding
	expander      *QueryExpander
	retriever     *RetrievalGateway
	synthesizer   *AnswerSynthesizer
	refiner       *AnswerRefiner

	events   ports.TurnEventPublisher
	observer ports.TurnObserver
	now      func() time.Time
}

func NewTurnUseCase(
	sessions ports.SessionStore,
	understanding *QueryUnderstanding,
	expander *QueryExpander,
	retriever *RetrievalGateway,
	synthesizer *AnswerSynthesizer,
	refiner *AnswerRefiner,
) *TurnUseCase {
	return &TurnUseCase{
		sessions:      sessions,
		understanding: understanding,
		expander:      expander,
		retriever:     retriever,
		synthesizer:   synthesizer,
		refiner:       refiner,
		now:           time.Now,
	}
}

func (uc *TurnUseCase) WithEventPublisher(events ports.TurnEventPublisher) *TurnUseCase {
	uc.events = events
	return uc
}

func (uc *TurnUseCase) WithObserver(observer ports.TurnObserver) *TurnUseCase {
	uc.observer = observer
	if uc.retriever != nil {
		uc.retriever.WithObserver(observer)
	}
	return uc
}

func (uc *TurnUseCase) HandleTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	started := uc.now()
	query := req.Query
	if strings.TrimSpace(query) == "" {
		uc.observeTurn(TurnOutcomeInvalid, 0, started)
		return nil, domain.WrapError(domain.ErrInvalidInput, "handle turn", errors.New("query is required"))
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}

	fail := func(stage string, filters domain.StructuredFilters, err error) (*domain.TurnResponse, error) {
		slog.Error("turn_failed",
			"stage", stage,
			"query", query,
			"session_id", sessionID,
			"filters", filters,
			"request_id", domain.RequestIDFromContext(ctx),
			"error", err,
		)
		uc.observeTurn(TurnOutcomeFailed, 0, started)
		return nil, domain.WrapError(domain.ErrTurnFailed, stage, err)
	}

	stageStart := uc.now()
	history, err := uc.sessions.History(ctx, sessionID)
	uc.observeStage(stageHistory, stageStart, err)
	if err != nil {
		return fail(stageHistory, req.Filters, err)
	}

	stageStart = uc.now()
	understood := uc.understanding.Understand(ctx, query, history)
	uc.observeStage(stageUnderstand, stageStart, nil)

	filters := domain.MergeFilters(understood.Filters, req.Filters)
	optimized := understood.SearchKeywords

	if IsVagueFollowUp(query) && uc.expander != nil {
		stageStart = uc.now()
		candidates := uc.expander.Expand(ctx, understood.SearchKeywords, history)
		uc.observeStage(stageExpand, stageStart, nil)

		applied := len(candidates) > 0 && candidates[0] != understood.SearchKeywords
		if applied {
			optimized = candidates[0]
			slog.Info("query_expanded", "query", optimized, "alternates", candidates[1:])
		}
		if uc.observer != nil {
			uc.observer.ObserveExpansion(applied)
		}
	}

	stageStart = uc.now()
	items, err := uc.retriever.Retrieve(ctx, optimized, filters)
	uc.observeStage(stageRetrieve, stageStart, err)
	if err != nil {
		return fail(stageRetrieve, filters, err)
	}

	recs, sources := Deduplicate(items)

	stageStart = uc.now()
	answer, err := uc.synthesizer.Synthesize(ctx, optimized, items, history)
	uc.observeStage(stageSynthesize, stageStart, err)
	if err != nil {
		return fail(stageSynthesize, filters, err)
	}

	stageStart = uc.now()
	final, outcome := uc.refiner.Refine(ctx, query, answer, recs, history)
	uc.observeStage(stageRefine, stageStart, nil)
	if uc.observer != nil {
		uc.observer.ObserveRefinement(outcome)
	}

	committedAt := uc.now()
	stageStart = committedAt
	err = uc.sessions.Append(ctx, sessionID, domain.Turn{Query: query, Answer: final, CreatedAt: committedAt})
	uc.observeStage(stageCommit, stageStart, err)
	if err != nil {
		return fail(stageCommit, filters, err)
	}

	uc.observeTurn(TurnOutcomeOK, len(recs), started)
	slog.Info("turn_completed",
		"session_id", sessionID,
		"recommended", len(recs),
		"refinement", outcome,
		"duration_ms", uc.now().Sub(started).Milliseconds(),
	)
	uc.publish(ctx, domain.TurnEvent{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		RequestID:      domain.RequestIDFromContext(ctx),
		Query:          query,
		OptimizedQuery: optimized,
		Answer:         final,
		Filters:        filters,
		Recommended:    recommendationNames(recs),
		Refined:        outcome == RefinementApplied,
		DurationMs:     uc.now().Sub(started).Milliseconds(),
		CreatedAt:      committedAt,
	})

	return &domain.TurnResponse{
		Answer:      final,
		Recommended: recs,
		Sources:     sources,
	}, nil
}

// publish is best-effort: the turn is already committed.
func (uc *TurnUseCase) publish(ctx context.Context, event domain.TurnEvent) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishTurnCompleted(ctx, event); err != nil {
		slog.Warn("turn_event_publish_failed", "session_id", event.SessionID, "error", err)
	}
}

func (uc *TurnUseCase) observeStage(stage string, start time.Time, err error) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveStage(stage, uc.now().Sub(start), err)
}

func (uc *TurnUseCase) observeTurn(outcome string, recs int, start time.Time) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveTurn(outcome, recs, uc.now().Sub(start))
}

func recommendationNames(recs []domain.Recommendation) []string {
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		names = append(names, rec.Name)
	}
	return names
}
