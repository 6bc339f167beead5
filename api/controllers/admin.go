package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/medledger-backend/api/responses"
	"github.com/angelmondragon/medledger-backend/api/validators"
	"github.com/angelmondragon/medledger-backend/internal/evidence"
	"github.com/angelmondragon/medledger-backend/internal/lookup"
	"github.com/angelmondragon/medledger-backend/internal/requests"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

type decisionRequest struct {
	AdminNotes string `json:"admin_notes" validate:"max=1000"`
}

// AdminListRequests lists requests across all users, optionally filtered by
// kind and status.
func AdminListRequests(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
			return
		}

		params, err := requestListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ApproveRequest decides a pending request in its submitter's favor.
func ApproveRequest(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return decide(svc, enums.RequestDecisionApprove, logg)
}

// RejectRequest closes a pending request without moving money.
func RejectRequest(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return decide(svc, enums.RequestDecisionReject, logg)
}

func decide(svc requests.Service, outcome enums.RequestDecision, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := uuidParam(r, "requestId", "request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body decisionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Transition(r.Context(), requests.TransitionInput{
			RequestID:  requestID,
			Outcome:    outcome,
			AdminNotes: validators.SanitizeString(body.AdminNotes, maxNotesLen),
			ActorID:    caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"request":     result.Request,
			"transaction": result.Transaction,
		})
	}
}

// AdminLookup resolves a reference code to its transaction or request.
func AdminLookup(svc lookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code is required"))
			return
		}
		result, err := svc.Search(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminOverview(svc lookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup unavailable"))
			return
		}
		overview, err := svc.Overview(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// AdminRequestEvidenceURL signs a download link for the document attached to
// a request.
func AdminRequestEvidenceURL(reqs requests.Service, files evidence.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reqs == nil || files == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "evidence unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := uuidParam(r, "requestId", "request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := reqs.Get(r.Context(), requests.GetInput{RequestID: requestID, RequesterID: caller.UserID, IsAdmin: true})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.EvidenceRef == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "request has no evidence"))
			return
		}

		link, err := files.ReadURLForKey(r.Context(), *req.EvidenceRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, link)
	}
}
