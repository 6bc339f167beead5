package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open returns a plain database/sql handle on the lib/pq driver for goose.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping migration connection: %w", err)
	}
	return conn, nil
}
