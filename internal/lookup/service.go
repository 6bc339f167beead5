package lookup

import (
	"context"
	"fmt"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/refcode"
)

type transactionFinder interface {
	FindByID(ctx context.Context, code string) (*models.Transaction, error)
}

type requestStats interface {
	FindByCode(ctx context.Context, code string) (*models.ModeratedRequest, error)
	CountPendingByKind(ctx context.Context) (map[enums.RequestKind]int64, error)
	SumApprovedCommission(ctx context.Context) (int64, error)
}

type userCounter interface {
	Count(ctx context.Context) (int64, error)
}

type balanceTotaler interface {
	TotalBalance(ctx context.Context, kind enums.AccountKind) (int64, error)
}

// Match kinds returned by Search.
const (
	MatchTransaction = "transaction"
	MatchRequest     = "request"
)

// Result is whichever record owns the searched code.
type Result struct {
	Kind        string                   `json:"kind"`
	Transaction *models.Transaction      `json:"transaction,omitempty"`
	Request     *models.ModeratedRequest `json:"request,omitempty"`
}

// Overview summarizes the ledger for the admin dashboard.
type Overview struct {
	TotalUsers                int64                       `json:"total_users"`
	TotalWalletBalanceCents   int64                       `json:"total_wallet_balance_cents"`
	TotalHospitalBalanceCents int64                       `json:"total_hospital_balance_cents"`
	TotalCommissionCents      int64                       `json:"total_commission_cents"`
	PendingByKind             map[enums.RequestKind]int64 `json:"pending_by_kind"`
}

// Service answers admin lookups across transactions and requests.
type Service interface {
	Search(ctx context.Context, code string) (*Result, error)
	Overview(ctx context.Context) (*Overview, error)
}

type service struct {
	transactions transactionFinder
	requests     requestStats
	users        userCounter
	accounts     balanceTotaler
}

func NewService(transactions transactionFinder, requests requestStats, users userCounter, accounts balanceTotaler) (Service, error) {
	if transactions == nil {
		return nil, fmt.Errorf("transaction recorder required")
	}
	if requests == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account store required")
	}
	return &service{transactions: transactions, requests: requests, users: users, accounts: accounts}, nil
}

// Search resolves code against transactions first, then requests.
func (s *service) Search(ctx context.Context, code string) (*Result, error) {
	normalized := refcode.Normalize(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	record, err := s.transactions.FindByID(ctx, normalized)
	if err == nil {
		return &Result{Kind: MatchTransaction, Transaction: record}, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	req, err := s.requests.FindByCode(ctx, normalized)
	if err == nil {
		return &Result{Kind: MatchRequest, Request: req}, nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no transaction or request with that code").
			WithDetails(map[string]any{"code": normalized})
	}
	return nil, err
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	wallets, err := s.accounts.TotalBalance(ctx, enums.AccountKindUserWallet)
	if err != nil {
		return nil, err
	}
	hospitals, err := s.accounts.TotalBalance(ctx, enums.AccountKindHospital)
	if err != nil {
		return nil, err
	}
	commission, err := s.requests.SumApprovedCommission(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum commission")
	}
	pending, err := s.requests.CountPendingByKind(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending requests")
	}
	return &Overview{
		TotalUsers:                users,
		TotalWalletBalanceCents:   wallets,
		TotalHospitalBalanceCents: hospitals,
		TotalCommissionCents:      commission,
		PendingByKind:             pending,
	}, nil
}
