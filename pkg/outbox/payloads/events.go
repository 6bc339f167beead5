package payloads

import (
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	"github.com/google/uuid"
)

// RequestSubmittedEvent is emitted when a moderated request enters pending.
type RequestSubmittedEvent struct {
	RequestID       uuid.UUID         `json:"request_id"`
	Code            string            `json:"code"`
	Kind            enums.RequestKind `json:"kind"`
	SubjectID       uuid.UUID         `json:"subject_id"`
	SubmittedBy     uuid.UUID         `json:"submitted_by"`
	AmountCents     int64             `json:"amount_cents"`
	CommissionCents int64             `json:"commission_cents"`
	NetAmountCents  int64             `json:"net_amount_cents"`
}

// RequestDecidedEvent is emitted once per request, when an admin approves or rejects it.
type RequestDecidedEvent struct {
	RequestID       uuid.UUID           `json:"request_id"`
	Code            string              `json:"code"`
	Kind            enums.RequestKind   `json:"kind"`
	Status          enums.RequestStatus `json:"status"`
	SubjectID       uuid.UUID           `json:"subject_id"`
	SubmittedBy     uuid.UUID           `json:"submitted_by"`
	DecidedBy       uuid.UUID           `json:"decided_by"`
	AmountCents     int64               `json:"amount_cents"`
	NetAmountCents  int64               `json:"net_amount_cents"`
	AdminNotes      string              `json:"admin_notes,omitempty"`
	TransactionCode string              `json:"transaction_code,omitempty"`
}

// TransferCompletedEvent reports a wallet-to-wallet transfer.
type TransferCompletedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Code          string    `json:"code"`
	SenderID      uuid.UUID `json:"sender_id"`
	ReceiverID    uuid.UUID `json:"receiver_id"`
	AmountCents   int64     `json:"amount_cents"`
}

// ConsultationPaidEvent reports a patient paying a doctor.
type ConsultationPaidEvent struct {
	ConsultationID uuid.UUID `json:"consultation_id"`
	TransactionID  uuid.UUID `json:"transaction_id"`
	Code           string    `json:"code"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	DoctorUserID   uuid.UUID `json:"doctor_user_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PriceCents     int64     `json:"price_cents"`
}

// HospitalBookingPaidEvent reports an online hospital booking payment.
type HospitalBookingPaidEvent struct {
	BookingID        uuid.UUID `json:"booking_id"`
	HospitalID       uuid.UUID `json:"hospital_id"`
	HospitalDoctorID uuid.UUID `json:"hospital_doctor_id"`
	OwnerUserID      uuid.UUID `json:"owner_user_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	PriceCents       int64     `json:"price_cents"`
}

// EvidenceReleasedEvent asks the deletion worker to remove a stored object.
type EvidenceReleasedEvent struct {
	EvidenceID uuid.UUID `json:"evidence_id"`
	GCSKey     string    `json:"gcs_key"`
	Reason     string    `json:"reason"`
}
