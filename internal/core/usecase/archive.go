package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

// ArchiveTurnUseCase persists committed turn events delivered by the queue.
type ArchiveTurnUseCase struct {
	repo ports.TranscriptRepository
}

func NewArchiveTurnUseCase(repo ports.TranscriptRepository) *ArchiveTurnUseCase {
	return &ArchiveTurnUseCase{repo: repo}
}

func (uc *ArchiveTurnUseCase) Archive(ctx context.Context, event domain.TurnEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "archive turn", errors.New("event id is required"))
	}
	if strings.TrimSpace(event.SessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "archive turn", errors.New("session id is required"))
	}
	if event.Filters == nil {
		event.Filters = domain.StructuredFilters{}
	}
	if err := uc.repo.SaveTurn(ctx, event); err != nil {
		return fmt.Errorf("save transcript %s: %w", event.ID, err)
	}
	return nil
}
