package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/medledger-backend/api/controllers"
	"github.com/angelmondragon/medledger-backend/api/routes"
	"github.com/angelmondragon/medledger-backend/internal/accounts"
	"github.com/angelmondragon/medledger-backend/internal/auth"
	"github.com/angelmondragon/medledger-backend/internal/evidence"
	"github.com/angelmondragon/medledger-backend/internal/ledger"
	"github.com/angelmondragon/medledger-backend/internal/lookup"
	"github.com/angelmondragon/medledger-backend/internal/notifications"
	"github.com/angelmondragon/medledger-backend/internal/providers"
	"github.com/angelmondragon/medledger-backend/internal/requests"
	"github.com/angelmondragon/medledger-backend/internal/transactions"
	"github.com/angelmondragon/medledger-backend/internal/users"
	"github.com/angelmondragon/medledger-backend/pkg/auth/session"
	"github.com/angelmondragon/medledger-backend/pkg/config"
	"github.com/angelmondragon/medledger-backend/pkg/db"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/metrics"
	"github.com/angelmondragon/medledger-backend/pkg/migrate"
	"github.com/angelmondragon/medledger-backend/pkg/money"
	"github.com/angelmondragon/medledger-backend/pkg/outbox"
	"github.com/angelmondragon/medledger-backend/pkg/redis"
	"github.com/angelmondragon/medledger-backend/pkg/refcode"
	"github.com/angelmondragon/medledger-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	defer func() {
		closeErr := multierr.Combine(gcsClient.Close(), redisClient.Close(), dbClient.Close())
		if closeErr != nil {
			logg.Error(context.Background(), "error closing clients", closeErr)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	services, err := buildServices(cfg, logg, dbClient, gcsClient, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
		"gcs":      gcsClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, readiness, redisClient, sessionManager, promhttp.Handler(), *services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gcsClient *gcs.Client, sessionManager *session.Manager) (*routes.Services, error) {
	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	accountStore := accounts.NewRepository(conn)
	recorder := transactions.NewRepository(conn, refcode.Random)
	requestRepo := requests.NewRepository(conn)
	providerRepo := providers.NewRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	maxTransfer, err := money.ParseAmount(cfg.Ledger.MaxTransfer)
	if err != nil {
		return nil, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return nil, err
	}

	providerService, err := providers.NewService(providerRepo, accountStore, userRepo)
	if err != nil {
		return nil, err
	}

	ledgerService, err := ledger.NewService(ledger.Options{
		DB:               dbClient,
		Accounts:         accountStore,
		Transactions:     recorder,
		Outbox:           outboxSvc,
		Directory:        providerRepo,
		Logger:           logg,
		Observer:         metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
		MaxTransferCents: maxTransfer,
	})
	if err != nil {
		return nil, err
	}

	evidenceService, err := evidence.NewService(evidence.Options{
		Repo:        evidence.NewRepository(conn),
		Store:       gcsClient,
		Outbox:      outboxSvc,
		Logger:      logg,
		Bucket:      cfg.GCS.BucketName,
		MaxBytes:    cfg.Evidence.MaxUploadBytes(),
		DownloadTTL: cfg.GCS.DownloadURLExpiry,
	})
	if err != nil {
		return nil, err
	}

	requestService, err := requests.NewService(requests.Options{
		DB:             dbClient,
		Repo:           requestRepo,
		Accounts:       accountStore,
		Ledger:         ledgerService,
		Providers:      providerService,
		Evidence:       evidenceService,
		Outbox:         outboxSvc,
		Codes:          refcode.Random,
		Logger:         logg,
		MaxAmountCents: maxTransfer,
	})
	if err != nil {
		return nil, err
	}

	lookupService, err := lookup.NewService(recorder, requestRepo, userRepo, accountStore)
	if err != nil {
		return nil, err
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password})
	if err != nil {
		return nil, err
	}
	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password})
	if err != nil {
		return nil, err
	}

	return &routes.Services{
		Auth:          authService,
		Register:      registerService,
		AdminRegister: adminRegisterService,
		Accounts:      accountStore,
		Transactions:  recorder,
		Ledger:        ledgerService,
		Requests:      requestService,
		Evidence:      evidenceService,
		Providers:     providerService,
		Lookup:        lookupService,
		Notifications: notificationService,
	}, nil
}
