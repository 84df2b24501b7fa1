// Package postgres provides the PostgreSQL-backed RecordStore. AppendAttempt
// locks the record row so the quota check and the log insert commit as one
// unit under concurrent requests for the same key.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"platewatch/internal/violation/models"
	"platewatch/internal/violation/ports"
	"platewatch/internal/violation/throttle"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Find(ctx context.Context, key models.RecordKey) (*models.ViolationRecord, error) {
	var id int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM violation_records WHERE plate = $1 AND phone = $2 AND email = $3`,
		key.Plate, key.Phone, key.Email,
	).Scan(&id, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sent_at FROM notification_log WHERE record_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load notification log: %w", err)
	}
	defer rows.Close()

	rec := &models.ViolationRecord{Key: key, CreatedAt: createdAt.UTC()}
	for rows.Next() {
		var sentAt time.Time
		if err := rows.Scan(&sentAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		rec.NotificationLog = append(rec.NotificationLog, sentAt.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification log: %w", err)
	}
	return rec, nil
}

func (s *Store) CreateWithAttempt(ctx context.Context, key models.RecordKey, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO violation_records (plate, phone, email, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (plate, phone, email) DO NOTHING
		 RETURNING id`,
		key.Plate, key.Phone, key.Email, now.UTC(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notification_log (record_id, sent_at) VALUES ($1, $2)`,
		id, now.UTC(),
	); err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (s *Store) AppendAttempt(ctx context.Context, key models.RecordKey, now time.Time, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM violation_records WHERE plate = $1 AND phone = $2 AND email = $3 FOR UPDATE`,
		key.Plate, key.Phone, key.Email,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock record: %w", err)
	}

	var sentToday int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_log WHERE record_id = $1 AND sent_at >= $2`,
		id, throttle.StartOfDay(now),
	).Scan(&sentToday); err != nil {
		return fmt.Errorf("count today: %w", err)
	}
	if limit <= 0 || sentToday >= limit {
		return ports.ErrQuotaExceeded
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notification_log (record_id, sent_at) VALUES ($1, $2)`,
		id, now.UTC(),
	); err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key models.RecordKey) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM violation_records WHERE plate = $1 AND phone = $2 AND email = $3)`,
		key.Plate, key.Phone, key.Email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return exists, nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// surfaced for callers that race on creation outside ON CONFLICT paths.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
