package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/internal/ledger"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

type testLedger struct {
	ledger.Service
	transferFn func(ctx context.Context, input ledger.TransferInput) (*models.Transaction, error)
	bookFn     func(ctx context.Context, input ledger.BookingInput) (*models.HospitalBooking, error)
}

func (l *testLedger) Transfer(ctx context.Context, input ledger.TransferInput) (*models.Transaction, error) {
	return l.transferFn(ctx, input)
}

func (l *testLedger) BookHospital(ctx context.Context, input ledger.BookingInput) (*models.HospitalBooking, error) {
	return l.bookFn(ctx, input)
}

func TestCreateTransferParsesDecimalAmount(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()
	var got ledger.TransferInput
	svc := &testLedger{
		transferFn: func(ctx context.Context, input ledger.TransferInput) (*models.Transaction, error) {
			got = input
			return &models.Transaction{Code: "ABCDEFGH23", Type: enums.TransactionTypeTransfer, UserID: input.SenderID, AmountCents: input.AmountCents}, nil
		},
	}

	body := `{"receiver_id":"` + receiver.String() + `","amount":"125.50","description":"  rent share  "}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body))
	req = withCaller(req, sender, enums.UserRolePatient)
	resp := httptest.NewRecorder()
	CreateTransfer(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.SenderID != sender || got.ReceiverID != receiver {
		t.Fatalf("unexpected parties %+v", got)
	}
	if got.AmountCents != 12550 {
		t.Fatalf("expected 12550 cents got %d", got.AmountCents)
	}
	if got.Description != "rent share" {
		t.Fatalf("expected trimmed description got %q", got.Description)
	}

	var envelope struct {
		Data models.Transaction `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Code != "ABCDEFGH23" {
		t.Fatalf("expected transaction code in response got %q", envelope.Data.Code)
	}
}

func TestCreateTransferRejectsBadAmounts(t *testing.T) {
	svc := &testLedger{
		transferFn: func(ctx context.Context, input ledger.TransferInput) (*models.Transaction, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	for _, amount := range []string{"0", "-5", "10.123", "abc"} {
		body := `{"receiver_id":"` + uuid.NewString() + `","amount":"` + amount + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body))
		req = withCaller(req, uuid.New(), enums.UserRolePatient)
		resp := httptest.NewRecorder()
		CreateTransfer(svc, testLogger())(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("amount %q: expected 400 got %d", amount, resp.Code)
		}
		env := decodeError(t, resp.Body.Bytes())
		if env.Error.Details["field"] != "amount" {
			t.Fatalf("amount %q: expected field detail got %+v", amount, env.Error.Details)
		}
	}
}

func TestCreateTransferSurfacesInsufficientFunds(t *testing.T) {
	svc := &testLedger{
		transferFn: func(ctx context.Context, input ledger.TransferInput) (*models.Transaction, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance too low")
		},
	}
	body := `{"receiver_id":"` + uuid.NewString() + `","amount":"10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body))
	req = withCaller(req, uuid.New(), enums.UserRolePatient)
	resp := httptest.NewRecorder()
	CreateTransfer(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if env := decodeError(t, resp.Body.Bytes()); env.Error.Code != string(pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("unexpected error code %q", env.Error.Code)
	}
}

func TestCreateTransferRequiresCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CreateTransfer(&testLedger{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCreateHospitalBookingValidatesPaymentMethod(t *testing.T) {
	patient := uuid.New()
	hospital := uuid.New()
	rosterDoctor := uuid.New()
	var got ledger.BookingInput
	svc := &testLedger{
		bookFn: func(ctx context.Context, input ledger.BookingInput) (*models.HospitalBooking, error) {
			got = input
			return &models.HospitalBooking{ID: uuid.New(), PatientID: input.PatientID, HospitalID: input.HospitalID}, nil
		},
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/hospital-bookings", strings.NewReader(`{"hospital_id":"`+hospital.String()+`","hospital_doctor_id":"`+rosterDoctor.String()+`","payment_method":"card"}`))
	bad = withCaller(bad, patient, enums.UserRolePatient)
	resp := httptest.NewRecorder()
	CreateHospitalBooking(svc, testLogger())(resp, bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for card got %d", resp.Code)
	}

	good := httptest.NewRequest(http.MethodPost, "/api/v1/hospital-bookings", strings.NewReader(`{"hospital_id":"`+hospital.String()+`","hospital_doctor_id":"`+rosterDoctor.String()+`","payment_method":"cash","notes":"  front desk  "}`))
	good = withCaller(good, patient, enums.UserRolePatient)
	resp = httptest.NewRecorder()
	CreateHospitalBooking(svc, testLogger())(resp, good)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.PaymentMethod != enums.BookingPaymentMethodCash {
		t.Fatalf("expected cash got %q", got.PaymentMethod)
	}
	if got.HospitalDoctorID != rosterDoctor {
		t.Fatalf("expected roster doctor %s got %s", rosterDoctor, got.HospitalDoctorID)
	}
	if got.Notes == nil || *got.Notes != "front desk" {
		t.Fatalf("expected sanitized notes got %v", got.Notes)
	}
}
