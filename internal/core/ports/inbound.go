package ports

import (
	"context"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

// TurnService is the inbound contract for one conversational turn.
type TurnService interface {
	HandleTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)
}

// TurnArchiver is the inbound contract for persisting committed turn events.
type TurnArchiver interface {
	Archive(ctx context.Context, event domain.TurnEvent) error
}
