package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	// column definitions only: CHECK clauses put an operator after the name
	centsColumnRe = regexp.MustCompile(`(?mi)^\s*(?:ADD\s+COLUMN\s+(?:IF\s+NOT\s+EXISTS\s+)?)?([a-z0-9_]+_cents)\s+([a-z]+)`)
)

// ValidateDir checks every goose SQL file in dir: the version prefix is
// unique, both directions are present, and every *_cents column is a bigint.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		match := migrationFileRe.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[match[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", match[1], prev, name)
		}
		versions[match[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		if err := checkMigrationBody(name, string(body)); err != nil {
			return err
		}
	}
	return nil
}

func checkMigrationBody(name, body string) error {
	for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(body, marker) {
			return fmt.Errorf("migration %q missing %q", name, marker)
		}
	}
	for _, col := range centsColumnRe.FindAllStringSubmatch(body, -1) {
		if !strings.EqualFold(col[2], "bigint") {
			return fmt.Errorf("migration %q declares money column %s as %s; amounts are bigint cents", name, col[1], col[2])
		}
	}
	return nil
}
