package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
)

// ModeratedRequest is a user submission awaiting a single admin decision.
type ModeratedRequest struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code            string              `gorm:"column:code;not null;unique" json:"code"`
	Kind            enums.RequestKind   `gorm:"column:kind;type:request_kind;not null" json:"kind"`
	Status          enums.RequestStatus `gorm:"column:status;type:request_status;not null;default:'pending'" json:"status"`
	SubjectID       uuid.UUID           `gorm:"column:subject_id;type:uuid;not null" json:"subject_id"`
	SubmittedBy     uuid.UUID           `gorm:"column:submitted_by;type:uuid;not null" json:"submitted_by"`
	AmountCents     int64               `gorm:"column:amount_cents;not null;default:0" json:"amount_cents"`
	CommissionCents int64               `gorm:"column:commission_cents;not null;default:0" json:"commission_cents"`
	NetAmountCents  int64               `gorm:"column:net_amount_cents;not null;default:0" json:"net_amount_cents"`
	EvidenceRef     *string             `gorm:"column:evidence_ref" json:"-"`
	PaymentMethod   *string             `gorm:"column:payment_method" json:"payment_method,omitempty"`
	Details         json.RawMessage     `gorm:"column:details;type:jsonb" json:"details,omitempty"`
	AdminNotes      *string             `gorm:"column:admin_notes" json:"admin_notes,omitempty"`
	DecidedBy       *uuid.UUID          `gorm:"column:decided_by;type:uuid" json:"decided_by,omitempty"`
	DecidedAt       *time.Time          `gorm:"column:decided_at" json:"decided_at,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *ModeratedRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
