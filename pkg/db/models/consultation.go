package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
)

// Consultation records a paid doctor consultation.
type Consultation struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DoctorID      uuid.UUID `gorm:"column:doctor_id;type:uuid;not null" json:"doctor_id,omitempty"`
	PatientID     uuid.UUID `gorm:"column:patient_id;type:uuid;not null" json:"patient_id"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null" json:"transaction_id"`
	PriceCents    int64     `gorm:"column:price_cents;not null" json:"price_cents"`
	Notes         *string   `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (c *Consultation) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// HospitalBooking reserves a hospital visit, paid online or at the desk.
// The doctor's name and specialty are copied so the booking survives roster
// edits.
type HospitalBooking struct {
	ID               uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	HospitalID       uuid.UUID                  `gorm:"column:hospital_id;type:uuid;not null" json:"hospital_id"`
	HospitalDoctorID uuid.UUID                  `gorm:"column:hospital_doctor_id;type:uuid;not null" json:"hospital_doctor_id"`
	DoctorName       string                     `gorm:"column:doctor_name;not null" json:"doctor_name"`
	Specialty        string                     `gorm:"column:specialty;not null" json:"specialty"`
	PatientID        uuid.UUID                  `gorm:"column:patient_id;type:uuid;not null" json:"patient_id"`
	PriceCents       int64                      `gorm:"column:price_cents;not null" json:"price_cents"`
	PaymentMethod    enums.BookingPaymentMethod `gorm:"column:payment_method;type:booking_payment_method;not null" json:"payment_method,omitempty"`
	PaidAt           *time.Time                 `gorm:"column:paid_at" json:"paid_at,omitempty"`
	ScheduledFor     *time.Time                 `gorm:"column:scheduled_for" json:"scheduled_for,omitempty"`
	Notes            *string                    `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt        time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (b *HospitalBooking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
