package providers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/internal/accounts"
	"github.com/angelmondragon/medledger-backend/internal/users"
	"github.com/angelmondragon/medledger-backend/pkg/db"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	pkgpagination "github.com/angelmondragon/medledger-backend/pkg/pagination"
)

// Service owns the provider directory: application approval effects and
// public reads.
type Service interface {
	ApproveDoctor(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Doctor, error)
	ApproveHospital(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Hospital, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*models.Doctor, error)
	ListDoctors(ctx context.Context, params ListDoctorsParams) (*DoctorList, error)
	GetHospital(ctx context.Context, id uuid.UUID) (*models.Hospital, error)
	ListHospitals(ctx context.Context, params pkgpagination.Params) (*HospitalList, error)
	HospitalForOwner(ctx context.Context, ownerID uuid.UUID) (*models.Hospital, error)
	DoctorForUser(ctx context.Context, userID uuid.UUID) (*models.Doctor, error)

	AddRosterDoctor(ctx context.Context, ownerID uuid.UUID, input RosterDoctorInput) (*models.HospitalDoctor, error)
	UpdateRosterDoctor(ctx context.Context, ownerID, rosterDoctorID uuid.UUID, input RosterDoctorUpdate) (*models.HospitalDoctor, error)
	ListRoster(ctx context.Context, hospitalID uuid.UUID, availableOnly bool) ([]models.HospitalDoctor, error)
}

// ListDoctorsParams filters the public doctor listing.
type ListDoctorsParams struct {
	Specialty string
	pkgpagination.Params
}

type DoctorList struct {
	Items  []models.Doctor `json:"items"`
	Cursor string          `json:"cursor"`
}

type HospitalList struct {
	Items  []models.Hospital `json:"items"`
	Cursor string            `json:"cursor"`
}

type service struct {
	repo     *Repository
	accounts accounts.Store
	users    *users.Repository
}

// NewService wires the directory service.
func NewService(repo *Repository, accountStore accounts.Store, userRepo *users.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("provider repository required")
	}
	if accountStore == nil {
		return nil, fmt.Errorf("account store required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo, accounts: accountStore, users: userRepo}, nil
}

// ApproveDoctor creates the verified doctor row, makes sure the user's
// wallet exists to receive fees and upgrades the user's role.
func (s *service) ApproveDoctor(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Doctor, error) {
	if err := requireApplication(tx, req, enums.RequestKindDoctorApplication); err != nil {
		return nil, err
	}
	app, err := ParseDoctorApplication(req.Details)
	if err != nil {
		return nil, err
	}

	doctor := &models.Doctor{
		UserID:                 req.SubjectID,
		RequestID:              req.ID,
		FullName:               app.FullName,
		Specialty:              app.Specialty,
		LicenseNumber:          app.LicenseNumber,
		ConsultationPriceCents: app.ConsultationPriceCents,
		Verified:               true,
	}
	if err := s.repo.CreateDoctor(ctx, tx, doctor); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "user is already a doctor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create doctor")
	}
	if _, err := s.accounts.WithTx(tx).Open(ctx, accounts.WalletOf(req.SubjectID)); err != nil {
		return nil, err
	}
	if err := s.users.WithTx(tx).UpdateRole(ctx, req.SubjectID, enums.UserRoleDoctor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upgrade user role")
	}
	return doctor, nil
}

// ApproveHospital creates the hospital with its balance account and upgrades
// the owner's role.
func (s *service) ApproveHospital(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Hospital, error) {
	if err := requireApplication(tx, req, enums.RequestKindHospitalApplication); err != nil {
		return nil, err
	}
	app, err := ParseHospitalApplication(req.Details)
	if err != nil {
		return nil, err
	}

	hospital := &models.Hospital{
		OwnerUserID: req.SubjectID,
		RequestID:   req.ID,
		Name:        app.Name,
		Address:     app.Address,
		Phone:       app.Phone,
	}
	if err := s.repo.CreateHospital(ctx, tx, hospital); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already owns a hospital")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create hospital")
	}
	if _, err := s.accounts.WithTx(tx).Open(ctx, accounts.HospitalAccountOf(hospital.ID)); err != nil {
		return nil, err
	}
	if err := s.users.WithTx(tx).UpdateRole(ctx, req.SubjectID, enums.UserRoleHospital); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upgrade user role")
	}
	return hospital, nil
}

func (s *service) GetDoctor(ctx context.Context, id uuid.UUID) (*models.Doctor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor id required")
	}
	return s.repo.FindDoctor(ctx, nil, id)
}

func (s *service) ListDoctors(ctx context.Context, params ListDoctorsParams) (*DoctorList, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListDoctors(ctx, doctorQuery{
		specialty: params.Specialty,
		limit:     pkgpagination.LimitWithBuffer(params.Limit),
		cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}

	items, next := pkgpagination.Trim(rows, params.Limit, func(d models.Doctor) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	return &DoctorList{Items: items, Cursor: next}, nil
}

func (s *service) GetHospital(ctx context.Context, id uuid.UUID) (*models.Hospital, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hospital id required")
	}
	return s.repo.FindHospital(ctx, nil, id)
}

func (s *service) ListHospitals(ctx context.Context, params pkgpagination.Params) (*HospitalList, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListHospitals(ctx, hospitalQuery{
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
		cursor: cursor,
	})
	if err != nil {
		return nil, err
	}

	items, next := pkgpagination.Trim(rows, params.Limit, func(h models.Hospital) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: h.CreatedAt, ID: h.ID}
	})
	return &HospitalList{Items: items, Cursor: next}, nil
}

func (s *service) HospitalForOwner(ctx context.Context, ownerID uuid.UUID) (*models.Hospital, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	return s.repo.FindHospitalByOwner(ctx, nil, ownerID)
}

func (s *service) DoctorForUser(ctx context.Context, userID uuid.UUID) (*models.Doctor, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.FindDoctorByUser(ctx, nil, userID)
}

func requireApplication(tx *gorm.DB, req *models.ModeratedRequest, kind enums.RequestKind) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "approval requires a transaction")
	}
	if req == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request required")
	}
	if req.Kind != kind {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("request kind %s is not %s", req.Kind, kind))
	}
	if req.SubjectID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request subject required")
	}
	return nil
}
