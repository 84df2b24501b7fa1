// Package ports defines the interfaces the admission service depends on.
// Adapters live under internal/violation/store and internal/notify.
package ports

import (
	"context"
	"errors"
	"time"

	"platewatch/internal/violation/models"
)

// Sentinel errors returned by RecordStore implementations. Services map
// them to coded domain errors at their boundary.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrQuotaExceeded = errors.New("daily quota exceeded")
)

// RecordStore persists ViolationRecords. AppendAttempt must perform the
// quota check and the log append atomically for a given key: a plain
// read-then-write lets two concurrent requests both observe a stale log and
// jointly overrun the daily limit.
type RecordStore interface {
	// Find returns the record for key, or ErrNotFound.
	Find(ctx context.Context, key models.RecordKey) (*models.ViolationRecord, error)

	// CreateWithAttempt creates the record with NotificationLog=[now].
	// Returns ErrAlreadyExists when a concurrent request created it first.
	CreateWithAttempt(ctx context.Context, key models.RecordKey, now time.Time) error

	// AppendAttempt atomically counts today's log entries and appends now
	// iff the count is below limit. Returns ErrQuotaExceeded on deny and
	// ErrNotFound when the record does not exist.
	AppendAttempt(ctx context.Context, key models.RecordKey, now time.Time, limit int) error

	// Exists reports whether a record for key is present.
	Exists(ctx context.Context, key models.RecordKey) (bool, error)

	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error
}

// Notifier delivers one message through the external messaging provider and
// returns the provider-assigned message ID. No internal retries.
type Notifier interface {
	Send(ctx context.Context, to, body string) (string, error)
}
