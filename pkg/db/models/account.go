package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
)

// Account holds a spendable balance for a user wallet or a hospital.
type Account struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind         enums.AccountKind `gorm:"column:kind;type:account_kind;not null" json:"kind"`
	OwnerID      uuid.UUID         `gorm:"column:owner_id;type:uuid;not null" json:"owner_id"`
	BalanceCents int64             `gorm:"column:balance_cents;not null;default:0" json:"balance_cents"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
