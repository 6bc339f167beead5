package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/medledger-backend/internal/auth"
	"github.com/angelmondragon/medledger-backend/pkg/config"
	"github.com/angelmondragon/medledger-backend/pkg/db"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/migrate"
)

type flags struct {
	cmd     string
	dir     string
	name    string
	version string
	email   string
	first   string
	last    string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.cmd, "cmd", "up", "command: up|down|status|redo|version|create|validate|seed-admin")
	flag.StringVar(&f.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&f.name, "name", "", "migration name (create)")
	flag.StringVar(&f.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.StringVar(&f.email, "email", "", "admin email (seed-admin)")
	flag.StringVar(&f.first, "first-name", "Ledger", "admin first name (seed-admin)")
	flag.StringVar(&f.last, "last-name", "Admin", "admin last name (seed-admin)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": f.cmd,
		"dir": f.dir,
	})

	switch f.cmd {
	case "create":
		if f.name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(f.dir, f.name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(f.dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	case "seed-admin":
		seedAdmin(ctx, cfg, logg, f)
		return
	}

	sqlDB, err := migrate.Open(ctx, cfg.DB.DSN)
	requireResource(ctx, logg, "database", err)
	defer sqlDB.Close()

	logg.Info(ctx, "migrate ready")
	if err := runGoose(ctx, sqlDB, f); err != nil {
		fail("goose %s failed: %v", f.cmd, err)
	}
}

func runGoose(ctx context.Context, sqlDB *sql.DB, f flags) error {
	switch f.cmd {
	case "up", "down", "status", "redo":
		return migrate.Run(ctx, sqlDB, f.dir, f.cmd)
	case "version":
		if f.version == "" {
			return fmt.Errorf("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, f.dir, f.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", f.cmd)
	}
}

// seedAdmin creates the first admin account. The password is read from
// MEDLEDGER_SEED_ADMIN_PASSWORD so it never lands in shell history.
func seedAdmin(ctx context.Context, cfg *config.Config, logg *logger.Logger, f flags) {
	password := os.Getenv("MEDLEDGER_SEED_ADMIN_PASSWORD")
	if f.email == "" || password == "" {
		fail("seed-admin needs -email and MEDLEDGER_SEED_ADMIN_PASSWORD")
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	svc, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password})
	requireResource(ctx, logg, "admin register service", err)

	user, err := svc.Register(ctx, auth.RegisterRequest{
		FirstName: f.first,
		LastName:  f.last,
		Email:     f.email,
		Password:  password,
	})
	if err != nil {
		fail("seed admin failed: %v", err)
	}
	logg.Info(logg.WithUserID(ctx, user.ID.String()), "admin seeded")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
