package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

type GenerationRequest struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	QuoteID        string      `gorm:"column:quote_id;type:varchar(64);not null;uniqueIndex"`
	OwnerID        string      `gorm:"column:owner_id;type:varchar(255);not null;index"`
	PromptText     string      `gorm:"type:text;not null"`
	SourceImageURL string      `gorm:"column:source_image_url;type:text;not null"`
	Status         string      `gorm:"type:varchar(50);not null;index"`
	TxHash         null.String `gorm:"column:tx_hash;type:varchar(255)"`
	ResultImageURL null.String `gorm:"column:result_image_url;type:text"`
	ErrorMessage   null.String `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (GenerationRequest) TableName() string {
	return "generation_requests"
}
