package repositories

import (
	"context"

	"stylize.backend/internal/domain/entities"
)

// UserRepository stores authenticated principals
type UserRepository interface {
	GetByOwnerID(ctx context.Context, ownerID string) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) error
}
