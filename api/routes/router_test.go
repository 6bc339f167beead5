package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/api/controllers"
	"github.com/angelmondragon/medledger-backend/internal/auth"
	"github.com/angelmondragon/medledger-backend/internal/lookup"
	"github.com/angelmondragon/medledger-backend/internal/requests"
	"github.com/angelmondragon/medledger-backend/internal/users"
	pkgAuth "github.com/angelmondragon/medledger-backend/pkg/auth"
	"github.com/angelmondragon/medledger-backend/pkg/auth/session"
	"github.com/angelmondragon/medledger-backend/pkg/config"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if req.Password != "correct-horse" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return &auth.LoginResponse{AccessToken: "access", RefreshToken: "refresh", User: &users.UserDTO{Email: req.Email}}, nil
}

func (stubAuthService) AdminLogin(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
}

func (stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.TokenPair, error) {
	return &auth.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

type stubLookup struct{}

func (stubLookup) Search(ctx context.Context, code string) (*lookup.Result, error) {
	return &lookup.Result{Kind: lookup.MatchTransaction, Transaction: &models.Transaction{Code: code}}, nil
}

func (stubLookup) Overview(ctx context.Context) (*lookup.Overview, error) {
	return &lookup.Overview{TotalUsers: 3}, nil
}

type stubRequests struct {
	requests.Service
	submitted []requests.SubmitInput
}

func (s *stubRequests) Submit(ctx context.Context, input requests.SubmitInput) (*models.ModeratedRequest, error) {
	s.submitted = append(s.submitted, input)
	return &models.ModeratedRequest{ID: uuid.New(), Kind: input.Kind, Status: enums.RequestStatusPending, SubmittedBy: input.SubmittedBy}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config, svc Services) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ledger_mutations_total 0\n"))
	})
	return NewRouter(
		cfg,
		logg,
		map[string]controllers.Pinger{"db": stubPinger{}},
		nil,
		stubSessions{},
		metrics,
		svc,
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestAuthenticatedGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})

	for _, path := range []string{"/api/v1/wallet", "/api/v1/requests", "/api/v1/doctors"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestLoginRouteReachesService(t *testing.T) {
	router := newTestRouter(testConfig(), Services{Auth: stubAuthService{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ana@example.com","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Access-Token") != "access" {
		t.Fatalf("expected access token header, got %q", resp.Header().Get("X-Access-Token"))
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ana@example.com","password":"wrong-pass"}`))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, bad)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{Lookup: stubLookup{}})

	patient := httptest.NewRequest(http.MethodGet, "/api/admin/v1/overview", nil)
	patient.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePatient))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, patient)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/lookup/abcdefgh23", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}

	var envelope struct {
		Data lookup.Result `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Kind != lookup.MatchTransaction || envelope.Data.Transaction.Code != "abcdefgh23" {
		t.Fatalf("unexpected lookup payload %+v", envelope.Data)
	}
}

func TestHospitalWithdrawalRequiresHospitalRole(t *testing.T) {
	cfg := testConfig()
	reqs := &stubRequests{}
	router := newTestRouter(cfg, Services{Requests: reqs})
	body := `{"amount":"250.00","payment_method":"bank"}`

	patient := httptest.NewRequest(http.MethodPost, "/api/v1/requests/hospital-withdrawals", strings.NewReader(body))
	patient.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePatient))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, patient)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient got %d", resp.Code)
	}

	hospital := httptest.NewRequest(http.MethodPost, "/api/v1/requests/hospital-withdrawals", strings.NewReader(body))
	hospital.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleHospital))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, hospital)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for hospital got %d: %s", resp.Code, resp.Body.String())
	}
	if len(reqs.submitted) != 1 {
		t.Fatalf("expected one submission got %d", len(reqs.submitted))
	}
	got := reqs.submitted[0]
	if got.Kind != enums.RequestKindHospitalWithdrawal || got.AmountCents != 25000 {
		t.Fatalf("unexpected submit input %+v", got)
	}
}

func TestWalletWithdrawalRequiresDoctorRole(t *testing.T) {
	cfg := testConfig()
	reqs := &stubRequests{}
	router := newTestRouter(cfg, Services{Requests: reqs})
	body := `{"amount":"120.00"}`

	for _, role := range []enums.UserRole{enums.UserRolePatient, enums.UserRoleHospital} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/withdrawals", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for %s got %d", role, resp.Code)
		}
	}
	if len(reqs.submitted) != 0 {
		t.Fatalf("expected no submissions got %d", len(reqs.submitted))
	}

	doctor := httptest.NewRequest(http.MethodPost, "/api/v1/requests/withdrawals", strings.NewReader(body))
	doctor.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleDoctor))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, doctor)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for doctor got %d: %s", resp.Code, resp.Body.String())
	}
	got := reqs.submitted[0]
	if got.Kind != enums.RequestKindWithdrawal || got.AmountCents != 12000 {
		t.Fatalf("unexpected submit input %+v", got)
	}
}

func TestHospitalRosterManagementRequiresHospitalRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hospitals/me/doctors", strings.NewReader(`{"full_name":"Dr. Rivas"}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleDoctor))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestAdminRegisterHiddenInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.App.Env = "prod"
	router := newTestRouter(cfg, Services{Auth: stubAuthService{}})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound && resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected admin register to be unrouted in prod got %d", resp.Code)
	}
}
