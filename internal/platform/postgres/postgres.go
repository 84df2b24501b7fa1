// Package postgres opens the PostgreSQL connection used by the record store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

const schema = `
CREATE TABLE IF NOT EXISTS violation_records (
	id         BIGSERIAL PRIMARY KEY,
	plate      TEXT NOT NULL,
	phone      TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (plate, phone, email)
);

CREATE TABLE IF NOT EXISTS notification_log (
	id        BIGSERIAL PRIMARY KEY,
	record_id BIGINT NOT NULL REFERENCES violation_records(id) ON DELETE CASCADE,
	sent_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS notification_log_record_sent_idx
	ON notification_log (record_id, sent_at);
`

// Open connects to the database, verifies the connection, and ensures the
// schema exists.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
