package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/api/responses"
	"github.com/angelmondragon/medledger-backend/api/validators"
	"github.com/angelmondragon/medledger-backend/internal/requests"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

type submitRequest struct {
	Amount        string          `json:"amount,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty" validate:"max=64"`
	EvidenceID    *uuid.UUID      `json:"evidence_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

// SubmitRequest opens a pending request of kind for the caller.
func SubmitRequest(svc requests.Service, kind enums.RequestKind, logg *logger.Logger) http.HandlerFunc {
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

		var body submitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := requests.SubmitInput{
			Kind:          kind,
			SubmittedBy:   caller.UserID,
			PaymentMethod: strings.TrimSpace(body.PaymentMethod),
			Details:       body.Details,
			ActorRole:     string(caller.Role),
		}
		if kind.HasAmount() {
			amount, err := parseAmount(body.Amount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.AmountCents = amount
		}
		if body.EvidenceID != nil {
			input.EvidenceID = *body.EvidenceID
		}

		req, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, req)
	}
}

// ListMyRequests lists requests the caller submitted.
func ListMyRequests(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
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
		params, err := requestListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForSubmitter(r.Context(), caller.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetRequest returns one request. Non-admins only see their own.
func GetRequest(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
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

		req, err := svc.Get(r.Context(), requests.GetInput{
			RequestID:   requestID,
			RequesterID: caller.UserID,
			IsAdmin:     caller.isAdmin(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

func requestListParams(r *http.Request) (requests.ListParams, error) {
	page, err := pageParams(r)
	if err != nil {
		return requests.ListParams{}, err
	}
	query := r.URL.Query()
	params := requests.ListParams{Params: page}
	if raw := strings.TrimSpace(query.Get("kind")); raw != "" {
		kind, err := enums.ParseRequestKind(raw)
		if err != nil {
			return requests.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind")
		}
		params.Kind = kind
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseRequestStatus(raw)
		if err != nil {
			return requests.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		params.Status = status
	}
	return params, nil
}
