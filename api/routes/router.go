package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/medledger-backend/api/controllers"
	"github.com/angelmondragon/medledger-backend/api/middleware"
	"github.com/angelmondragon/medledger-backend/internal/accounts"
	"github.com/angelmondragon/medledger-backend/internal/auth"
	"github.com/angelmondragon/medledger-backend/internal/evidence"
	"github.com/angelmondragon/medledger-backend/internal/ledger"
	"github.com/angelmondragon/medledger-backend/internal/lookup"
	"github.com/angelmondragon/medledger-backend/internal/notifications"
	"github.com/angelmondragon/medledger-backend/internal/providers"
	"github.com/angelmondragon/medledger-backend/internal/requests"
	"github.com/angelmondragon/medledger-backend/internal/transactions"
	"github.com/angelmondragon/medledger-backend/pkg/auth/session"
	"github.com/angelmondragon/medledger-backend/pkg/config"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/redis"
)

// Services groups the domain services the API exposes.
type Services struct {
	Auth          auth.Service
	Register      auth.RegisterService
	AdminRegister auth.AdminRegisterService
	Accounts      accounts.Store
	Transactions  transactions.Recorder
	Ledger        ledger.Service
	Requests      requests.Service
	Evidence      evidence.Service
	Providers     providers.Service
	Lookup        lookup.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	metricsHandler http.Handler,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	rateLimited := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if redisClient == nil {
			return passthrough
		}
		return middleware.AuthRateLimit(policy, redisClient, logg)
	}
	idempotent := passthrough
	if redisClient != nil {
		idempotent = middleware.Idempotency(redisClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(rateLimited(loginPolicy)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.With(rateLimited(registerPolicy), idempotent).Post("/register", controllers.AuthRegister(svc.Register, svc.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svc.Auth, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(svc.AdminRegister, svc.Auth, cfg, logg))
		}
		r.With(rateLimited(loginPolicy)).Post("/login", controllers.AdminAuthLogin(svc.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(idempotent)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(svc.Accounts, svc.Providers, logg))
			r.Get("/transactions", controllers.WalletTransactions(svc.Transactions, logg))
		})

		r.Post("/transfers", controllers.CreateTransfer(svc.Ledger, logg))
		r.Post("/consultations", controllers.CreateConsultation(svc.Ledger, logg))
		r.Post("/hospital-bookings", controllers.CreateHospitalBooking(svc.Ledger, logg))

		r.Route("/evidence", func(r chi.Router) {
			r.Post("/", controllers.UploadEvidence(svc.Evidence, cfg.Evidence.MaxUploadBytes(), logg))
			r.Get("/{evidenceId}/url", controllers.EvidenceURL(svc.Evidence, logg))
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", controllers.ListMyRequests(svc.Requests, logg))
			r.Get("/{requestId}", controllers.GetRequest(svc.Requests, logg))
			r.Post("/deposits", controllers.SubmitRequest(svc.Requests, enums.RequestKindDeposit, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleDoctor)).
				Post("/withdrawals", controllers.SubmitRequest(svc.Requests, enums.RequestKindWithdrawal, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleHospital)).
				Post("/hospital-withdrawals", controllers.SubmitRequest(svc.Requests, enums.RequestKindHospitalWithdrawal, logg))
			r.Post("/doctor-applications", controllers.SubmitRequest(svc.Requests, enums.RequestKindDoctorApplication, logg))
			r.Post("/hospital-applications", controllers.SubmitRequest(svc.Requests, enums.RequestKindHospitalApplication, logg))
			r.Post("/loans", controllers.SubmitRequest(svc.Requests, enums.RequestKindLoan, logg))
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", controllers.ListDoctors(svc.Providers, logg))
			r.Get("/{doctorId}", controllers.GetDoctor(svc.Providers, logg))
		})
		r.Route("/hospitals", func(r chi.Router) {
			r.Get("/", controllers.ListHospitals(svc.Providers, logg))
			r.Route("/me", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleHospital))
				r.Get("/", controllers.MyHospital(svc.Providers, logg))
				r.Get("/doctors", controllers.MyRoster(svc.Providers, logg))
				r.Post("/doctors", controllers.AddRosterDoctor(svc.Providers, logg))
				r.Patch("/doctors/{rosterDoctorId}", controllers.UpdateRosterDoctor(svc.Providers, logg))
			})
			r.Get("/{hospitalId}", controllers.GetHospital(svc.Providers, logg))
			r.Get("/{hospitalId}/doctors", controllers.ListHospitalDoctors(svc.Providers, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(idempotent)

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", controllers.AdminListRequests(svc.Requests, logg))
			r.Get("/{requestId}", controllers.GetRequest(svc.Requests, logg))
			r.Get("/{requestId}/evidence/url", controllers.AdminRequestEvidenceURL(svc.Requests, svc.Evidence, logg))
			r.Post("/{requestId}/approve", controllers.ApproveRequest(svc.Requests, logg))
			r.Post("/{requestId}/reject", controllers.RejectRequest(svc.Requests, logg))
		})
		r.Get("/lookup/{code}", controllers.AdminLookup(svc.Lookup, logg))
		r.Get("/overview", controllers.AdminOverview(svc.Lookup, logg))
		r.Get("/evidence/{evidenceId}/url", controllers.EvidenceURL(svc.Evidence, logg))
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
