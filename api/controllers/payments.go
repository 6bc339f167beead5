package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/api/responses"
	"github.com/angelmondragon/medledger-backend/api/validators"
	"github.com/angelmondragon/medledger-backend/internal/ledger"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/money"
)

const maxNotesLen = 1000

type transferRequest struct {
	ReceiverID  uuid.UUID `json:"receiver_id" validate:"required"`
	Amount      string    `json:"amount" validate:"required"`
	Description string    `json:"description" validate:"max=255"`
}

type consultationRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
	Notes    *string   `json:"notes,omitempty"`
}

type bookingRequest struct {
	HospitalID       uuid.UUID  `json:"hospital_id" validate:"required"`
	HospitalDoctorID uuid.UUID  `json:"hospital_doctor_id" validate:"required"`
	PaymentMethod    string     `json:"payment_method" validate:"required,oneof=wallet cash"`
	ScheduledFor     *time.Time `json:"scheduled_for,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
}

func parseAmount(raw string) (int64, error) {
	cents, err := money.ParseAmount(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, err.Error()).
			WithDetails(map[string]any{"field": "amount"})
	}
	return cents, nil
}

func sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	value := validators.SanitizeString(*notes, maxNotesLen)
	if value == "" {
		return nil
	}
	return &value
}

// CreateTransfer moves money from the caller's wallet to another user's wallet.
func CreateTransfer(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Transfer(r.Context(), ledger.TransferInput{
			SenderID:    caller.UserID,
			ReceiverID:  body.ReceiverID,
			AmountCents: amount,
			Description: strings.TrimSpace(body.Description),
			ActorRole:   string(caller.Role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// CreateConsultation pays a verified doctor the consultation price on record.
func CreateConsultation(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body consultationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PayConsultation(r.Context(), ledger.ConsultationInput{
			PatientID: caller.UserID,
			DoctorID:  body.DoctorID,
			Notes:     sanitizeNotes(body.Notes),
			ActorRole: string(caller.Role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"consultation": result.Consultation,
			"transaction":  result.Transaction,
		})
	}
}

// CreateHospitalBooking reserves a visit with a roster doctor, paid from the
// wallet or in cash.
func CreateHospitalBooking(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body bookingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParseBookingPaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method"))
			return
		}

		booking, err := svc.BookHospital(r.Context(), ledger.BookingInput{
			PatientID:        caller.UserID,
			HospitalID:       body.HospitalID,
			HospitalDoctorID: body.HospitalDoctorID,
			PaymentMethod:    method,
			ScheduledFor:     body.ScheduledFor,
			Notes:            sanitizeNotes(body.Notes),
			ActorRole:        string(caller.Role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}
