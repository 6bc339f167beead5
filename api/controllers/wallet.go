package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/api/responses"
	"github.com/angelmondragon/medledger-backend/internal/accounts"
	"github.com/angelmondragon/medledger-backend/internal/transactions"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/money"
)

type balanceReader interface {
	GetBalance(ctx context.Context, ref accounts.Ref) (int64, error)
}

type hospitalOwnerLookup interface {
	HospitalForOwner(ctx context.Context, ownerID uuid.UUID) (*models.Hospital, error)
}

type balanceView struct {
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
}

type hospitalBalanceView struct {
	HospitalID uuid.UUID `json:"hospital_id"`
	Name       string    `json:"name"`
	balanceView
}

type walletResponse struct {
	Wallet   balanceView          `json:"wallet"`
	Hospital *hospitalBalanceView `json:"hospital,omitempty"`
}

func newBalanceView(cents int64) balanceView {
	return balanceView{BalanceCents: cents, Balance: money.Format(cents)}
}

// WalletBalance returns the caller's wallet and, for hospital owners, the
// hospital account balance.
func WalletBalance(store balanceReader, hospitals hospitalOwnerLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account store unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := store.GetBalance(r.Context(), accounts.WalletOf(caller.UserID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := walletResponse{Wallet: newBalanceView(balance)}

		if caller.Role == enums.UserRoleHospital && hospitals != nil {
			hospital, err := hospitals.HospitalForOwner(r.Context(), caller.UserID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			hospitalBalance, err := store.GetBalance(r.Context(), accounts.HospitalAccountOf(hospital.ID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			resp.Hospital = &hospitalBalanceView{
				HospitalID:  hospital.ID,
				Name:        hospital.Name,
				balanceView: newBalanceView(hospitalBalance),
			}
		}

		responses.WriteSuccess(w, resp)
	}
}

// WalletTransactions pages through every transaction the caller sent or received.
func WalletTransactions(recorder transactions.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction recorder unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := recorder.ListForUser(r.Context(), caller.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
