package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
)

// Transaction is an immutable audit record of money that moved.
type Transaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string                `gorm:"column:code;not null;unique" json:"code"`
	Type        enums.TransactionType `gorm:"column:type;type:transaction_type;not null" json:"type"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	ReceiverID  *uuid.UUID            `gorm:"column:receiver_id;type:uuid" json:"receiver_id,omitempty"`
	DoctorID    *uuid.UUID            `gorm:"column:doctor_id;type:uuid" json:"doctor_id,omitempty"`
	AmountCents int64                 `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Description *string               `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
