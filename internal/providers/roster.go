package providers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

// RosterDoctorInput adds a practitioner to the caller's hospital.
type RosterDoctorInput struct {
	FullName               string  `json:"full_name" validate:"required,max=200"`
	Specialty              string  `json:"specialty" validate:"required,max=120"`
	Phone                  *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	ConsultationPriceCents int64   `json:"consultation_price_cents" validate:"gt=0"`
}

// RosterDoctorUpdate changes price or availability. Nil fields are left as is.
type RosterDoctorUpdate struct {
	ConsultationPriceCents *int64 `json:"consultation_price_cents,omitempty" validate:"omitempty,gt=0"`
	Available              *bool  `json:"available,omitempty"`
}

func (s *service) AddRosterDoctor(ctx context.Context, ownerID uuid.UUID, input RosterDoctorInput) (*models.HospitalDoctor, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Specialty = strings.TrimSpace(input.Specialty)
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid roster doctor")
	}
	hospital, err := s.ownedHospital(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	doctor := &models.HospitalDoctor{
		HospitalID:             hospital.ID,
		FullName:               input.FullName,
		Specialty:              input.Specialty,
		Phone:                  input.Phone,
		ConsultationPriceCents: input.ConsultationPriceCents,
		Available:              true,
	}
	if err := s.repo.CreateRosterDoctor(ctx, nil, doctor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create roster doctor")
	}
	return doctor, nil
}

// UpdateRosterDoctor edits a roster entry of the caller's hospital. Entries
// of other hospitals read as not found.
func (s *service) UpdateRosterDoctor(ctx context.Context, ownerID, rosterDoctorID uuid.UUID, input RosterDoctorUpdate) (*models.HospitalDoctor, error) {
	if rosterDoctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "roster doctor id required")
	}
	if input.ConsultationPriceCents == nil && input.Available == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid roster update")
	}
	hospital, err := s.ownedHospital(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.FindRosterDoctor(ctx, nil, rosterDoctorID)
	if err != nil {
		return nil, err
	}
	if doctor.HospitalID != hospital.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "roster doctor not found")
	}

	if input.ConsultationPriceCents != nil {
		doctor.ConsultationPriceCents = *input.ConsultationPriceCents
	}
	if input.Available != nil {
		doctor.Available = *input.Available
	}
	if err := s.repo.SaveRosterDoctor(ctx, nil, doctor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update roster doctor")
	}
	return doctor, nil
}

func (s *service) ListRoster(ctx context.Context, hospitalID uuid.UUID, availableOnly bool) ([]models.HospitalDoctor, error) {
	if hospitalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hospital id required")
	}
	if _, err := s.repo.FindHospital(ctx, nil, hospitalID); err != nil {
		return nil, err
	}
	return s.repo.ListRoster(ctx, hospitalID, availableOnly)
}

func (s *service) ownedHospital(ctx context.Context, ownerID uuid.UUID) (*models.Hospital, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	hospital, err := s.repo.FindHospitalByOwner(ctx, nil, ownerID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own a hospital")
		}
		return nil, err
	}
	return hospital, nil
}
