package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
)

// Evidence tracks an uploaded supporting document stored in GCS.
type Evidence struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID    uuid.UUID             `gorm:"column:owner_id;type:uuid;not null" json:"owner_id"`
	Purpose    enums.EvidencePurpose `gorm:"column:purpose;type:evidence_purpose;not null" json:"purpose"`
	Status     enums.EvidenceStatus  `gorm:"column:status;type:evidence_status;not null;default:'pending'" json:"status"`
	GCSKey     string                `gorm:"column:gcs_key;not null;unique" json:"-"`
	FileName   string                `gorm:"column:file_name;not null" json:"file_name"`
	MimeType   string                `gorm:"column:mime_type;not null" json:"mime_type"`
	SizeBytes  int64                 `gorm:"column:size_bytes;not null" json:"size_bytes"`
	AttachedAt *time.Time            `gorm:"column:attached_at" json:"attached_at,omitempty"`
	ReleasedAt *time.Time            `gorm:"column:released_at" json:"released_at,omitempty"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (e *Evidence) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
