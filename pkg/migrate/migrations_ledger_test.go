package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/medledger-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestAccountsMigrationGuardsBalance(t *testing.T) {
	content := readMigration(t, "create_users_and_accounts")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS accounts",
		"balance_cents bigint NOT NULL DEFAULT 0",
		"CHECK (balance_cents >= 0)",
		"UNIQUE (kind, owner_id)",
		"DROP TABLE IF EXISTS accounts",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTransactionsMigrationIsAppendOnly(t *testing.T) {
	content := readMigration(t, "create_transactions")
	checks := []string{
		"CONSTRAINT ux_transactions_code UNIQUE (code)",
		"BEFORE UPDATE OR DELETE ON transactions",
		"DROP TABLE IF EXISTS transactions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRequestsMigrationEnumeratesKinds(t *testing.T) {
	content := readMigration(t, "create_moderated_requests")
	for _, kind := range []string{"'deposit'", "'withdrawal'", "'hospital_withdrawal'", "'doctor_application'", "'hospital_application'", "'loan'"} {
		if !strings.Contains(content, kind) {
			t.Errorf("request_kind enum missing %s", kind)
		}
	}
	if !strings.Contains(content, "status request_status NOT NULL DEFAULT 'pending'") {
		t.Error("moderated_requests must default to pending")
	}
}

func TestProvidersMigrationPricesBookingsFromRoster(t *testing.T) {
	content := readMigration(t, "create_providers_and_bookings")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS hospital_doctors",
		"consultation_price_cents bigint NOT NULL CHECK (consultation_price_cents > 0)",
		"hospital_doctor_id uuid NOT NULL REFERENCES hospital_doctors(id)",
		"DROP TABLE IF EXISTS hospital_doctors",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
	if strings.Contains(content, "booking_price_cents") {
		t.Error("hospitals must not carry a flat booking price")
	}
}
