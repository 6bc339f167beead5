package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/medledger-backend/api/responses"
	"github.com/angelmondragon/medledger-backend/internal/evidence"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

// multipart framing on top of the file itself
const uploadOverheadBytes = 64 << 10

// UploadEvidence stores a supporting document from a multipart form with a
// "file" part and a "purpose" field.
func UploadEvidence(svc evidence.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "evidence unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+uploadOverheadBytes)
		if err := r.ParseMultipartForm(maxBytes + uploadOverheadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		purpose, err := enums.ParseEvidencePurpose(strings.TrimSpace(r.FormValue("purpose")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purpose"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read file"))
			return
		}

		row, err := svc.Upload(r.Context(), evidence.UploadInput{
			OwnerID:  caller.UserID,
			Purpose:  purpose,
			FileName: header.Filename,
			Data:     data,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

// EvidenceURL signs a short-lived download link. Owners see their own files,
// admins see any.
func EvidenceURL(svc evidence.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "evidence unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		evidenceID, err := uuidParam(r, "evidenceId", "evidence id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		link, err := svc.ReadURL(r.Context(), evidence.ReadURLInput{
			EvidenceID:  evidenceID,
			RequesterID: caller.UserID,
			IsAdmin:     caller.isAdmin(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, link)
	}
}
