package providers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	pkgpagination "github.com/angelmondragon/medledger-backend/pkg/pagination"
)

// Repository persists the doctor and hospital directory. Lookups accept an
// optional transaction so the ledger can read prices inside its own unit of
// work.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the directory to conn.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *Repository) CreateDoctor(ctx context.Context, tx *gorm.DB, doctor *models.Doctor) error {
	return r.conn(tx).WithContext(ctx).Create(doctor).Error
}

func (r *Repository) CreateHospital(ctx context.Context, tx *gorm.DB, hospital *models.Hospital) error {
	return r.conn(tx).WithContext(ctx).Create(hospital).Error
}

func (r *Repository) FindDoctor(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := r.conn(tx).WithContext(ctx).First(&doctor, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "doctor not found", "lookup doctor")
	}
	return &doctor, nil
}

func (r *Repository) FindDoctorByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := r.conn(tx).WithContext(ctx).First(&doctor, "user_id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "doctor not found", "lookup doctor")
	}
	return &doctor, nil
}

func (r *Repository) FindHospital(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Hospital, error) {
	var hospital models.Hospital
	if err := r.conn(tx).WithContext(ctx).First(&hospital, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "hospital not found", "lookup hospital")
	}
	return &hospital, nil
}

func (r *Repository) FindHospitalByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*models.Hospital, error) {
	var hospital models.Hospital
	if err := r.conn(tx).WithContext(ctx).First(&hospital, "owner_user_id = ?", ownerID).Error; err != nil {
		return nil, notFoundOr(err, "hospital not found", "lookup hospital")
	}
	return &hospital, nil
}

func (r *Repository) CreateRosterDoctor(ctx context.Context, tx *gorm.DB, doctor *models.HospitalDoctor) error {
	return r.conn(tx).WithContext(ctx).Create(doctor).Error
}

func (r *Repository) SaveRosterDoctor(ctx context.Context, tx *gorm.DB, doctor *models.HospitalDoctor) error {
	return r.conn(tx).WithContext(ctx).
		Model(doctor).
		Select("consultation_price_cents", "available", "updated_at").
		Updates(doctor).Error
}

// FindRosterDoctor loads a roster entry. The ledger calls it inside its
// booking transaction to read the price.
func (r *Repository) FindRosterDoctor(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.HospitalDoctor, error) {
	var doctor models.HospitalDoctor
	if err := r.conn(tx).WithContext(ctx).First(&doctor, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "roster doctor not found", "lookup roster doctor")
	}
	return &doctor, nil
}

func (r *Repository) ListRoster(ctx context.Context, hospitalID uuid.UUID, availableOnly bool) ([]models.HospitalDoctor, error) {
	query := r.db.WithContext(ctx).Where("hospital_id = ?", hospitalID)
	if availableOnly {
		query = query.Where("available = ?", true)
	}
	var rows []models.HospitalDoctor
	if err := query.Order("full_name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list roster")
	}
	return rows, nil
}

type doctorQuery struct {
	specialty string
	limit     int
	cursor    *pkgpagination.Cursor
}

func (r *Repository) ListDoctors(ctx context.Context, q doctorQuery) ([]models.Doctor, error) {
	query := r.db.WithContext(ctx).Model(&models.Doctor{}).Where("verified = ?", true)
	if q.specialty != "" {
		query = query.Where("LOWER(specialty) = LOWER(?)", q.specialty)
	}
	if q.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID)
	}
	var rows []models.Doctor
	if err := query.Order("created_at DESC").Order("id DESC").Limit(q.limit).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list doctors")
	}
	return rows, nil
}

type hospitalQuery struct {
	limit  int
	cursor *pkgpagination.Cursor
}

func (r *Repository) ListHospitals(ctx context.Context, q hospitalQuery) ([]models.Hospital, error) {
	query := r.db.WithContext(ctx).Model(&models.Hospital{})
	if q.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID)
	}
	var rows []models.Hospital
	if err := query.Order("created_at DESC").Order("id DESC").Limit(q.limit).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list hospitals")
	}
	return rows, nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
