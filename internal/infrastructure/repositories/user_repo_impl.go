package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	"stylize.backend/internal/infrastructure/models"
)

// UserRepositoryImpl implements UserRepository
type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) GetByOwnerID(ctx context.Context, ownerID string) (*entities.User, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *entities.User) error {
	m := &models.User{
		ID:            user.ID,
		OwnerID:       user.OwnerID,
		WalletAddress: user.WalletAddress,
		Fid:           user.Fid,
		Role:          user.Role,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *UserRepositoryImpl) toEntity(m *models.User) *entities.User {
	return &entities.User{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		WalletAddress: m.WalletAddress,
		Fid:           m.Fid,
		Role:          m.Role,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
