package requests

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgpagination "github.com/angelmondragon/medledger-backend/pkg/pagination"
)

// ListParams filters a request listing. Zero values mean no filter.
type ListParams struct {
	Kind        enums.RequestKind
	Status      enums.RequestStatus
	SubjectID   uuid.UUID
	SubmittedBy uuid.UUID
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID              uuid.UUID           `json:"id"`
	Code            string              `json:"code"`
	Kind            enums.RequestKind   `json:"kind"`
	Status          enums.RequestStatus `json:"status"`
	SubjectID       uuid.UUID           `json:"subject_id"`
	SubmittedBy     uuid.UUID           `json:"submitted_by"`
	AmountCents     int64               `json:"amount_cents"`
	CommissionCents int64               `json:"commission_cents"`
	NetAmountCents  int64               `json:"net_amount_cents"`
	PaymentMethod   *string             `json:"payment_method,omitempty"`
	HasEvidence     bool                `json:"has_evidence"`
	AdminNotes      *string             `json:"admin_notes,omitempty"`
	DecidedBy       *uuid.UUID          `json:"decided_by,omitempty"`
	DecidedAt       *time.Time          `json:"decided_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type listQuery struct {
	kind        enums.RequestKind
	status      enums.RequestStatus
	subjectID   uuid.UUID
	submittedBy uuid.UUID
	limit       int
	cursor      *pkgpagination.Cursor
}

func toListItem(m models.ModeratedRequest) ListItem {
	return ListItem{
		ID:              m.ID,
		Code:            m.Code,
		Kind:            m.Kind,
		Status:          m.Status,
		SubjectID:       m.SubjectID,
		SubmittedBy:     m.SubmittedBy,
		AmountCents:     m.AmountCents,
		CommissionCents: m.CommissionCents,
		NetAmountCents:  m.NetAmountCents,
		PaymentMethod:   m.PaymentMethod,
		HasEvidence:     m.EvidenceRef != nil,
		AdminNotes:      m.AdminNotes,
		DecidedBy:       m.DecidedBy,
		DecidedAt:       m.DecidedAt,
		CreatedAt:       m.CreatedAt,
	}
}
