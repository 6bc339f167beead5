package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/api/middleware"
	"github.com/angelmondragon/medledger-backend/api/validators"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/pagination"
)

// actor is the authenticated caller as seeded by the auth middleware.
type actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a actor) isAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

func actorFromRequest(r *http.Request) (actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return actor{UserID: id, Role: enums.UserRole(middleware.RoleFromContext(r.Context()))}, nil
}

func uuidParam(r *http.Request, name, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
