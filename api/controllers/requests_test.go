package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/internal/requests"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

type testRequests struct {
	requests.Service
	submitFn     func(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error)
	transitionFn func(ctx context.Context, input requests.TransitionInput) (*requests.TransitionResult, error)
	getFn        func(ctx context.Context, input requests.GetInput) (*models.ModeratedRequest, error)
	listFn       func(ctx context.Context, params requests.ListParams) (*requests.ListResult, error)
}

func (s *testRequests) Submit(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error) {
	return s.submitFn(ctx, input)
}

func (s *testRequests) Transition(ctx context.Context, input requests.TransitionInput) (*requests.TransitionResult, error) {
	return s.transitionFn(ctx, input)
}

func (s *testRequests) Get(ctx context.Context, input requests.GetInput) (*models.ModeratedRequest, error) {
	return s.getFn(ctx, input)
}

func (s *testRequests) List(ctx context.Context, params requests.ListParams) (*requests.ListResult, error) {
	return s.listFn(ctx, params)
}

func (s *testRequests) ListForSubmitter(ctx context.Context, submitterID uuid.UUID, params requests.ListParams) (*requests.ListResult, error) {
	params.SubmittedBy = submitterID
	return s.listFn(ctx, params)
}

func TestSubmitDepositParsesAmountAndEvidence(t *testing.T) {
	user := uuid.New()
	evidenceID := uuid.New()
	var got requests.SubmitInput
	svc := &testRequests{
		submitFn: func(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error) {
			got = input
			return &models.ModeratedRequest{ID: uuid.New(), Code: "DEPOSIT222", Kind: input.Kind, Status: enums.RequestStatusPending}, nil
		},
	}

	body := `{"amount":"300","payment_method":"  bank transfer ","evidence_id":"` + evidenceID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/deposits", strings.NewReader(body))
	req = withCaller(req, user, enums.UserRolePatient)
	resp := httptest.NewRecorder()
	SubmitRequest(svc, enums.RequestKindDeposit, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Kind != enums.RequestKindDeposit || got.SubmittedBy != user {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.AmountCents != 30000 {
		t.Fatalf("expected 30000 cents got %d", got.AmountCents)
	}
	if got.PaymentMethod != "bank transfer" || got.EvidenceID != evidenceID {
		t.Fatalf("unexpected payment method or evidence %+v", got)
	}
}

func TestSubmitApplicationIgnoresAmount(t *testing.T) {
	var got requests.SubmitInput
	svc := &testRequests{
		submitFn: func(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error) {
			got = input
			return &models.ModeratedRequest{ID: uuid.New(), Kind: input.Kind}, nil
		},
	}

	body := `{"details":{"full_name":"Dr. Salma Nour","specialty":"Cardiology","license_number":"EG-1","consultation_price_cents":40000}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/doctor-applications", strings.NewReader(body))
	req = withCaller(req, uuid.New(), enums.UserRolePatient)
	resp := httptest.NewRecorder()
	SubmitRequest(svc, enums.RequestKindDoctorApplication, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.AmountCents != 0 {
		t.Fatalf("expected no amount got %d", got.AmountCents)
	}
	var details map[string]any
	if err := json.Unmarshal(got.Details, &details); err != nil {
		t.Fatalf("details not forwarded: %v", err)
	}
	if details["specialty"] != "Cardiology" {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestSubmitWithdrawalRequiresAmount(t *testing.T) {
	svc := &testRequests{
		submitFn: func(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/withdrawals", strings.NewReader(`{"payment_method":"bank"}`))
	req = withCaller(req, uuid.New(), enums.UserRolePatient)
	resp := httptest.NewRecorder()
	SubmitRequest(svc, enums.RequestKindWithdrawal, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSubmitLoanParsesAmountAndPhone(t *testing.T) {
	idCard := uuid.New()
	var got requests.SubmitInput
	svc := &testRequests{
		submitFn: func(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error) {
			got = input
			return &models.ModeratedRequest{ID: uuid.New(), Kind: input.Kind, Status: enums.RequestStatusPending}, nil
		},
	}

	body := `{"amount":"1500.50","evidence_id":"` + idCard.String() + `","details":{"phone":"+20 100 555 0101"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/loans", strings.NewReader(body))
	req = withCaller(req, uuid.New(), enums.UserRolePatient)
	resp := httptest.NewRecorder()
	SubmitRequest(svc, enums.RequestKindLoan, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Kind != enums.RequestKindLoan || got.AmountCents != 150050 || got.EvidenceID != idCard {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestSubmitDepositRejectsAmountPastInt64(t *testing.T) {
	svc := &testRequests{
		submitFn: func(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	body := `{"amount":"184467440737095516.17","payment_method":"bank","evidence_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/deposits", strings.NewReader(body))
	req = withCaller(req, uuid.New(), enums.UserRolePatient)
	resp := httptest.NewRecorder()
	SubmitRequest(svc, enums.RequestKindDeposit, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if env := decodeError(t, resp.Body.Bytes()); env.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error code %q", env.Error.Code)
	}
}

func TestGetRequestPassesAdminFlag(t *testing.T) {
	requestID := uuid.New()
	for _, tc := range []struct {
		role  enums.UserRole
		admin bool
	}{
		{role: enums.UserRolePatient, admin: false},
		{role: enums.UserRoleAdmin, admin: true},
	} {
		var got requests.GetInput
		svc := &testRequests{
			getFn: func(ctx context.Context, input requests.GetInput) (*models.ModeratedRequest, error) {
				got = input
				return &models.ModeratedRequest{ID: input.RequestID}, nil
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/"+requestID.String(), nil)
		req = withCaller(req, uuid.New(), tc.role)
		req = addRouteParam(req, "requestId", requestID.String())
		resp := httptest.NewRecorder()
		GetRequest(svc, testLogger())(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", tc.role, resp.Code)
		}
		if got.IsAdmin != tc.admin || got.RequestID != requestID {
			t.Fatalf("%s: unexpected get input %+v", tc.role, got)
		}
	}
}

func TestListMyRequestsFilters(t *testing.T) {
	user := uuid.New()
	var got requests.ListParams
	svc := &testRequests{
		listFn: func(ctx context.Context, params requests.ListParams) (*requests.ListResult, error) {
			got = params
			return &requests.ListResult{Items: []requests.ListItem{}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests?kind=withdrawal&status=pending&limit=10", nil)
	req = withCaller(req, user, enums.UserRolePatient)
	resp := httptest.NewRecorder()
	ListMyRequests(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got.SubmittedBy != user || got.Kind != enums.RequestKindWithdrawal || got.Status != enums.RequestStatusPending || got.Limit != 10 {
		t.Fatalf("unexpected params %+v", got)
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/requests?kind=refund", nil)
	bad = withCaller(bad, user, enums.UserRolePatient)
	resp = httptest.NewRecorder()
	ListMyRequests(svc, testLogger())(resp, bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind got %d", resp.Code)
	}
}

func TestApproveRequestForwardsDecision(t *testing.T) {
	admin := uuid.New()
	requestID := uuid.New()
	var got requests.TransitionInput
	svc := &testRequests{
		transitionFn: func(ctx context.Context, input requests.TransitionInput) (*requests.TransitionResult, error) {
			got = input
			return &requests.TransitionResult{
				Request:     &models.ModeratedRequest{ID: input.RequestID, Status: enums.RequestStatusApproved},
				Transaction: &models.Transaction{Code: "TXN2345678"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/requests/"+requestID.String()+"/approve", strings.NewReader(`{"admin_notes":" receipt matches "}`))
	req = withCaller(req, admin, enums.UserRoleAdmin)
	req = addRouteParam(req, "requestId", requestID.String())
	resp := httptest.NewRecorder()
	ApproveRequest(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Outcome != enums.RequestDecisionApprove || got.ActorID != admin || got.RequestID != requestID {
		t.Fatalf("unexpected transition %+v", got)
	}
	if got.AdminNotes != "receipt matches" {
		t.Fatalf("expected trimmed notes got %q", got.AdminNotes)
	}
}

func TestRejectRequestWithoutBody(t *testing.T) {
	var got requests.TransitionInput
	svc := &testRequests{
		transitionFn: func(ctx context.Context, input requests.TransitionInput) (*requests.TransitionResult, error) {
			got = input
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request already decided")
		},
	}
	requestID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/requests/"+requestID.String()+"/reject", nil)
	req = withCaller(req, uuid.New(), enums.UserRoleAdmin)
	req = addRouteParam(req, "requestId", requestID.String())
	resp := httptest.NewRecorder()
	RejectRequest(svc, testLogger())(resp, req)

	if got.Outcome != enums.RequestDecisionReject {
		t.Fatalf("expected reject outcome got %q", got.Outcome)
	}
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if env := decodeError(t, resp.Body.Bytes()); env.Error.Message != "request already decided" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}
