package repositories

import (
	"context"

	"stylize.backend/internal/domain/entities"
)

// GenerationRequestRepository is the durable store of generation requests.
//
// CompareAndTransition is the concurrency primitive the admission service
// relies on: it atomically checks the current status before applying the
// update and fails with errors.ErrStaleStatus otherwise. All admission
// decisions route through it; nothing may enqueue a stylize job without
// first winning a transition from pending_payment to queued.
type GenerationRequestRepository interface {
	Create(ctx context.Context, req *entities.GenerationRequest) error
	GetByQuoteID(ctx context.Context, quoteID string) (*entities.GenerationRequest, error)
	CompareAndTransition(ctx context.Context, quoteID string, from, to entities.GenerationStatus, fields entities.TransitionFields) error
	ListByOwner(ctx context.Context, ownerID string, statuses []entities.GenerationStatus, limit, offset int) ([]*entities.GenerationRequest, int, error)
}
