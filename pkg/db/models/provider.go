package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Doctor is a verified practitioner created from an approved application.
// Consultation fees are credited to the wallet of UserID.
type Doctor struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID                 uuid.UUID `gorm:"column:user_id;type:uuid;not null;unique" json:"user_id"`
	RequestID              uuid.UUID `gorm:"column:request_id;type:uuid;not null" json:"request_id"`
	FullName               string    `gorm:"column:full_name;not null" json:"full_name"`
	Specialty              string    `gorm:"column:specialty;not null" json:"specialty"`
	LicenseNumber          string    `gorm:"column:license_number;not null" json:"license_number"`
	ConsultationPriceCents int64     `gorm:"column:consultation_price_cents;not null" json:"consultation_price_cents"`
	Verified               bool      `gorm:"column:verified;not null;default:true" json:"verified"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (d *Doctor) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// Hospital is a facility with its own balance account. Booking prices come
// from its roster.
type Hospital struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;unique" json:"owner_user_id"`
	RequestID   uuid.UUID `gorm:"column:request_id;type:uuid;not null" json:"request_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Address     string    `gorm:"column:address;not null" json:"address"`
	Phone       *string   `gorm:"column:phone" json:"phone,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (h *Hospital) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}

// HospitalDoctor is a practitioner on a hospital's roster. Roster doctors
// have no platform account; bookings with them pay the hospital.
type HospitalDoctor struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	HospitalID             uuid.UUID `gorm:"column:hospital_id;type:uuid;not null" json:"hospital_id"`
	FullName               string    `gorm:"column:full_name;not null" json:"full_name"`
	Specialty              string    `gorm:"column:specialty;not null" json:"specialty"`
	Phone                  *string   `gorm:"column:phone" json:"phone,omitempty"`
	ConsultationPriceCents int64     `gorm:"column:consultation_price_cents;not null" json:"consultation_price_cents"`
	Available              bool      `gorm:"column:available;not null;default:true" json:"available"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (HospitalDoctor) TableName() string {
	return "hospital_doctors"
}

func (d *HospitalDoctor) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
