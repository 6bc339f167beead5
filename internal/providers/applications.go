package providers

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

var validate = validator.New()

// DoctorApplication is the details payload of a doctor_application request.
type DoctorApplication struct {
	FullName               string `json:"full_name" validate:"required,max=200"`
	Specialty              string `json:"specialty" validate:"required,max=120"`
	LicenseNumber          string `json:"license_number" validate:"required,max=64"`
	ConsultationPriceCents int64  `json:"consultation_price_cents" validate:"gt=0"`
}

// HospitalApplication is the details payload of a hospital_application request.
type HospitalApplication struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Address string  `json:"address" validate:"required,max=500"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

func (a *DoctorApplication) normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Specialty = strings.TrimSpace(a.Specialty)
	a.LicenseNumber = strings.TrimSpace(a.LicenseNumber)
}

func (a *HospitalApplication) normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Address = strings.TrimSpace(a.Address)
}

// ParseDoctorApplication decodes and validates stored or submitted details.
func ParseDoctorApplication(raw json.RawMessage) (*DoctorApplication, error) {
	var app DoctorApplication
	if err := decodeDetails(raw, &app); err != nil {
		return nil, err
	}
	app.normalize()
	if err := validate.Struct(app); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid doctor application")
	}
	return &app, nil
}

// ParseHospitalApplication decodes and validates stored or submitted details.
func ParseHospitalApplication(raw json.RawMessage) (*HospitalApplication, error) {
	var app HospitalApplication
	if err := decodeDetails(raw, &app); err != nil {
		return nil, err
	}
	app.normalize()
	if err := validate.Struct(app); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid hospital application")
	}
	return &app, nil
}

func decodeDetails(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "application details required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed application details")
	}
	return nil
}
