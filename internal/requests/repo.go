package requests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/refcode"
)

// Repository persists moderated requests.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the request repository to conn.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts req inside a savepoint so a code collision can be retried
// without aborting the caller's transaction.
func (r *Repository) Create(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) error {
	return r.conn(tx).WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Create(req).Error
	})
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ModeratedRequest, error) {
	var row models.ModeratedRequest
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &row, nil
}

// FindByCode matches the normalized external code exactly.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.ModeratedRequest, error) {
	var row models.ModeratedRequest
	if err := r.db.WithContext(ctx).First(&row, "code = ?", refcode.Normalize(code)).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &row, nil
}

// FindForUpdate loads the request and holds its row lock until tx ends.
func (r *Repository) FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ModeratedRequest, error) {
	var row models.ModeratedRequest
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &row, nil
}

// HasPending reports whether subject already has a pending request of kind.
func (r *Repository) HasPending(ctx context.Context, tx *gorm.DB, subjectID uuid.UUID, kind enums.RequestKind) (bool, error) {
	var n int64
	err := r.conn(tx).WithContext(ctx).
		Model(&models.ModeratedRequest{}).
		Where("subject_id = ? AND kind = ? AND status = ?", subjectID, kind, enums.RequestStatusPending).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type decision struct {
	id            uuid.UUID
	status        enums.RequestStatus
	adminNotes    *string
	decidedBy     uuid.UUID
	decidedAt     time.Time
	clearEvidence bool
}

// Decide moves a pending request to its terminal status. It reports false
// when the row was no longer pending.
func (r *Repository) Decide(ctx context.Context, tx *gorm.DB, d decision) (bool, error) {
	updates := map[string]any{
		"status":      d.status,
		"admin_notes": d.adminNotes,
		"decided_by":  d.decidedBy,
		"decided_at":  d.decidedAt,
		"updated_at":  d.decidedAt,
	}
	if d.clearEvidence {
		updates["evidence_ref"] = nil
	}
	res := tx.WithContext(ctx).
		Model(&models.ModeratedRequest{}).
		Where("id = ? AND status = ?", d.id, enums.RequestStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns requests newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.ModeratedRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.ModeratedRequest{})
	if opts.kind != "" {
		query = query.Where("kind = ?", opts.kind)
	}
	if opts.status != "" {
		query = query.Where("status = ?", opts.status)
	}
	if opts.subjectID != uuid.Nil {
		query = query.Where("subject_id = ?", opts.subjectID)
	}
	if opts.submittedBy != uuid.Nil {
		query = query.Where("submitted_by = ?", opts.submittedBy)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	var rows []models.ModeratedRequest
	if err := query.Order("created_at DESC").Order("id DESC").Limit(opts.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountPendingByKind groups pending requests by kind.
func (r *Repository) CountPendingByKind(ctx context.Context) (map[enums.RequestKind]int64, error) {
	var rows []struct {
		Kind  enums.RequestKind
		Total int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ModeratedRequest{}).
		Select("kind, COUNT(*) AS total").
		Where("status = ?", enums.RequestStatusPending).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.RequestKind]int64, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Total
	}
	return counts, nil
}

// SumApprovedCommission totals the commission frozen on approved withdrawals.
func (r *Repository) SumApprovedCommission(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ModeratedRequest{}).
		Select("COALESCE(SUM(commission_cents), 0)").
		Where("kind = ? AND status = ?", enums.RequestKindWithdrawal, enums.RequestStatusApproved).
		Scan(&total).Error
	return total, err
}

// CountPendingOlderThan counts requests still pending since before cutoff.
func (r *Repository) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ModeratedRequest{}).
		Where("status = ? AND created_at < ?", enums.RequestStatusPending, cutoff).
		Count(&n).Error
	return n, err
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup request")
}
