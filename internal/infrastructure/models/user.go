package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

type User struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	OwnerID       string      `gorm:"column:owner_id;type:varchar(255);not null;uniqueIndex"`
	WalletAddress null.String `gorm:"type:varchar(255)"`
	Fid           null.Int64  `gorm:"column:fid"`
	Role          string      `gorm:"type:varchar(50);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (User) TableName() string {
	return "users"
}
