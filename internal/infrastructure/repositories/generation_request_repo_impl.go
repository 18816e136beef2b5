package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	"stylize.backend/internal/infrastructure/models"
)

// GenerationRequestRepositoryImpl implements GenerationRequestRepository
type GenerationRequestRepositoryImpl struct {
	db *gorm.DB
}

func NewGenerationRequestRepository(db *gorm.DB) *GenerationRequestRepositoryImpl {
	return &GenerationRequestRepositoryImpl{db: db}
}

func (r *GenerationRequestRepositoryImpl) Create(ctx context.Context, req *entities.GenerationRequest) error {
	m := &models.GenerationRequest{
		ID:             req.ID,
		QuoteID:        req.QuoteID,
		OwnerID:        req.OwnerID,
		PromptText:     req.PromptText,
		SourceImageURL: req.SourceImageURL,
		Status:         string(req.Status),
		TxHash:         req.TxHash,
		ResultImageURL: req.ResultImageURL,
		ErrorMessage:   req.ErrorMessage,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateQuote
		}
		return err
	}
	return nil
}

func (r *GenerationRequestRepositoryImpl) GetByQuoteID(ctx context.Context, quoteID string) (*entities.GenerationRequest, error) {
	var m models.GenerationRequest
	if err := r.db.WithContext(ctx).Where("quote_id = ?", quoteID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// CompareAndTransition applies a conditional status update. The WHERE clause
// carries both the quote id and the expected current status; zero affected
// rows means another caller advanced the row first.
func (r *GenerationRequestRepositoryImpl) CompareAndTransition(ctx context.Context, quoteID string, from, to entities.GenerationStatus, fields entities.TransitionFields) error {
	if !from.CanTransitionTo(to) {
		return domainerrors.NewError("illegal status transition "+string(from)+" -> "+string(to), domainerrors.ErrInvalidState)
	}

	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	if fields.TxHash.Valid {
		updates["tx_hash"] = fields.TxHash
	}
	if fields.ResultImageURL.Valid {
		updates["result_image_url"] = fields.ResultImageURL
	}
	if fields.ErrorMessage.Valid {
		updates["error_message"] = fields.ErrorMessage
	}
	// The operator reset back to pending_payment clears the failed proof.
	if to == entities.GenerationStatusPendingPayment {
		updates["tx_hash"] = nil
	}

	res := r.db.WithContext(ctx).Model(&models.GenerationRequest{}).
		Where("quote_id = ? AND status = ?", quoteID, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrStaleStatus
	}
	return nil
}

func (r *GenerationRequestRepositoryImpl) ListByOwner(ctx context.Context, ownerID string, statuses []entities.GenerationStatus, limit, offset int) ([]*entities.GenerationRequest, int, error) {
	q := r.db.WithContext(ctx).Model(&models.GenerationRequest{}).Where("owner_id = ?", ownerID)
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		q = q.Where("status IN ?", values)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.GenerationRequest
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	var requests []*entities.GenerationRequest
	for _, m := range ms {
		model := m
		requests = append(requests, r.toEntity(&model))
	}
	return requests, int(total), nil
}

func (r *GenerationRequestRepositoryImpl) toEntity(m *models.GenerationRequest) *entities.GenerationRequest {
	return &entities.GenerationRequest{
		ID:             m.ID,
		QuoteID:        m.QuoteID,
		OwnerID:        m.OwnerID,
		PromptText:     m.PromptText,
		SourceImageURL: m.SourceImageURL,
		Status:         entities.GenerationStatus(m.Status),
		TxHash:         m.TxHash,
		ResultImageURL: m.ResultImageURL,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
