package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/medledger-backend/api/responses"
	"github.com/angelmondragon/medledger-backend/api/validators"
	"github.com/angelmondragon/medledger-backend/internal/providers"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

// ListDoctors pages through verified doctors, optionally by specialty.
func ListDoctors(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListDoctors(r.Context(), providers.ListDoctorsParams{
			Specialty: validators.SanitizeString(strings.TrimSpace(r.URL.Query().Get("specialty")), 120),
			Params:    page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetDoctor(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		doctorID, err := uuidParam(r, "doctorId", "doctor id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doctor, err := svc.GetDoctor(r.Context(), doctorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, doctor)
	}
}

func ListHospitals(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListHospitals(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetHospital(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		hospitalID, err := uuidParam(r, "hospitalId", "hospital id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		hospital, err := svc.GetHospital(r.Context(), hospitalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, hospital)
	}
}

// MyHospital returns the hospital owned by the caller.
func MyHospital(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		hospital, err := svc.HospitalForOwner(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, hospital)
	}
}

// ListHospitalDoctors returns the roster doctors of a hospital that are
// taking bookings.
func ListHospitalDoctors(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		hospitalID, err := uuidParam(r, "hospitalId", "hospital id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		roster, err := svc.ListRoster(r.Context(), hospitalID, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": roster})
	}
}

// MyRoster returns every roster doctor of the caller's hospital, including
// unavailable ones.
func MyRoster(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		hospital, err := svc.HospitalForOwner(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		roster, err := svc.ListRoster(r.Context(), hospital.ID, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": roster})
	}
}

func AddRosterDoctor(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body providers.RosterDoctorInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doctor, err := svc.AddRosterDoctor(r.Context(), caller.UserID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, doctor)
	}
}

// UpdateRosterDoctor changes the price or availability of a roster doctor.
func UpdateRosterDoctor(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rosterDoctorID, err := uuidParam(r, "rosterDoctorId", "roster doctor id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body providers.RosterDoctorUpdate
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doctor, err := svc.UpdateRosterDoctor(r.Context(), caller.UserID, rosterDoctorID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, doctor)
	}
}
