package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationPassesValidation(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "  Add Loan  Disbursements! ")
	require.NoError(t, err)
	require.Regexp(t, `^\d{14}_add_loan_disbursements\.sql$`, filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsNonBigintMoneyColumns(t *testing.T) {
	dir := t.TempDir()
	body := `-- +goose Up
CREATE TABLE refunds (
  id uuid PRIMARY KEY,
  amount_cents numeric(12,2) NOT NULL,
  CONSTRAINT ck_refunds_amount CHECK (amount_cents > 0)
);
-- +goose Down
DROP TABLE refunds;
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301000000_create_refunds.sql"), []byte(body), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "amount_cents as numeric")
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301000000_b.sql"), body, 0o644))
	require.ErrorContains(t, ValidateDir(dir), "duplicate migration version")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), body, 0o644))
	require.Error(t, ValidateDir(dir))
}
