package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

type stubTransactions struct {
	byCode map[string]*models.Transaction
	err    error
	asked  []string
}

func (s *stubTransactions) FindByID(_ context.Context, code string) (*models.Transaction, error) {
	s.asked = append(s.asked, code)
	if s.err != nil {
		return nil, s.err
	}
	if record, ok := s.byCode[code]; ok {
		return record, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

type stubRequests struct {
	byCode     map[string]*models.ModeratedRequest
	pending    map[enums.RequestKind]int64
	commission int64
}

func (s *stubRequests) FindByCode(_ context.Context, code string) (*models.ModeratedRequest, error) {
	if req, ok := s.byCode[code]; ok {
		return req, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
}

func (s *stubRequests) CountPendingByKind(context.Context) (map[enums.RequestKind]int64, error) {
	return s.pending, nil
}

func (s *stubRequests) SumApprovedCommission(context.Context) (int64, error) {
	return s.commission, nil
}

type stubUsers struct{ n int64 }

func (s stubUsers) Count(context.Context) (int64, error) { return s.n, nil }

type stubBalances map[enums.AccountKind]int64

func (s stubBalances) TotalBalance(_ context.Context, kind enums.AccountKind) (int64, error) {
	return s[kind], nil
}

func newTestService(t *testing.T, txs *stubTransactions, reqs *stubRequests) Service {
	t.Helper()
	svc, err := NewService(txs, reqs, stubUsers{n: 4}, stubBalances{
		enums.AccountKindUserWallet: 125000,
		enums.AccountKindHospital:   40000,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestSearchPrefersTransactions(t *testing.T) {
	record := &models.Transaction{ID: uuid.New(), Code: "ABCDEFGH23"}
	txs := &stubTransactions{byCode: map[string]*models.Transaction{"ABCDEFGH23": record}}
	reqs := &stubRequests{byCode: map[string]*models.ModeratedRequest{"ABCDEFGH23": {ID: uuid.New()}}}
	svc := newTestService(t, txs, reqs)

	result, err := svc.Search(context.Background(), " abcdefgh23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != MatchTransaction || result.Transaction != record {
		t.Fatalf("expected transaction match, got %+v", result)
	}
	if txs.asked[0] != "ABCDEFGH23" {
		t.Fatalf("expected normalized lookup, got %q", txs.asked[0])
	}
}

func TestSearchFallsBackToRequests(t *testing.T) {
	req := &models.ModeratedRequest{ID: uuid.New(), Code: "QRSTUVWX45"}
	svc := newTestService(t, &stubTransactions{}, &stubRequests{byCode: map[string]*models.ModeratedRequest{"QRSTUVWX45": req}})

	result, err := svc.Search(context.Background(), "qrstuvwx45")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != MatchRequest || result.Request != req {
		t.Fatalf("expected request match, got %+v", result)
	}
}

func TestSearchErrors(t *testing.T) {
	svc := newTestService(t, &stubTransactions{}, &stubRequests{})
	if _, err := svc.Search(context.Background(), "NOPE234567"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Search(context.Background(), "  "); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	broken := newTestService(t, &stubTransactions{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "lookup transaction")}, &stubRequests{})
	if _, err := broken.Search(context.Background(), "ABCDEFGH23"); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestOverview(t *testing.T) {
	reqs := &stubRequests{
		pending:    map[enums.RequestKind]int64{enums.RequestKindDeposit: 3, enums.RequestKindDoctorApplication: 1},
		commission: 9000,
	}
	svc := newTestService(t, &stubTransactions{}, reqs)

	overview, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.TotalUsers != 4 || overview.TotalWalletBalanceCents != 125000 || overview.TotalHospitalBalanceCents != 40000 {
		t.Fatalf("unexpected totals %+v", overview)
	}
	if overview.TotalCommissionCents != 9000 {
		t.Fatalf("expected commission 9000, got %d", overview.TotalCommissionCents)
	}
	if overview.PendingByKind[enums.RequestKindDeposit] != 3 {
		t.Fatalf("expected 3 pending deposits, got %d", overview.PendingByKind[enums.RequestKindDeposit])
	}
}
