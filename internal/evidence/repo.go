package evidence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

// Repository persists evidence rows. Methods that take a tx fall back to the
// bound connection when tx is nil.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to conn.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *Repository) Create(ctx context.Context, row *models.Evidence) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).Delete(&models.Evidence{}, "id = ?", id).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Evidence, error) {
	var row models.Evidence
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &row, nil
}

func (r *Repository) FindByKey(ctx context.Context, tx *gorm.DB, key string) (*models.Evidence, error) {
	var row models.Evidence
	if err := r.conn(tx).WithContext(ctx).First(&row, "gcs_key = ?", key).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &row, nil
}

// MarkAttached moves a pending upload owned by ownerID to attached. It
// reports false when no row matched.
func (r *Repository) MarkAttached(ctx context.Context, tx *gorm.DB, id, ownerID uuid.UUID, purpose enums.EvidencePurpose, at time.Time) (bool, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&models.Evidence{}).
		Where("id = ? AND owner_id = ? AND purpose = ? AND status = ?", id, ownerID, purpose, enums.EvidenceStatusPending).
		Updates(map[string]any{
			"status":      enums.EvidenceStatusAttached,
			"attached_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkReleased flags the object behind key for deletion. Rows already
// released are left alone and reported as false.
func (r *Repository) MarkReleased(ctx context.Context, tx *gorm.DB, key string, at time.Time) (bool, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&models.Evidence{}).
		Where("gcs_key = ? AND status <> ?", key, enums.EvidenceStatusReleased).
		Updates(map[string]any{
			"status":      enums.EvidenceStatusReleased,
			"released_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPendingBefore returns uploads never attached to a request.
func (r *Repository) ListPendingBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]models.Evidence, error) {
	var rows []models.Evidence
	err := r.conn(tx).WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.EvidenceStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "evidence not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup evidence")
}
