// Package models holds the violation domain entities shared across the
// throttle, stores, and admission service.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RecordKey identifies a ViolationRecord. Two submissions with the same
// (Plate, Phone, Email) tuple refer to the same record.
type RecordKey struct {
	Plate string
	Phone string
	Email string
}

// Hash returns a stable hex digest of the key, used by stores that need a
// flat key space. Fields are separated by NUL so no concatenation of
// distinct tuples collides.
func (k RecordKey) Hash() string {
	h := sha256.New()
	h.Write([]byte(k.Plate))
	h.Write([]byte{0})
	h.Write([]byte(k.Phone))
	h.Write([]byte{0})
	h.Write([]byte(k.Email))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// ViolationRecord is one notified entity. NotificationLog is append-only and
// insertion-ordered; every successful admission appends the dispatch time.
type ViolationRecord struct {
	Key             RecordKey
	NotificationLog []time.Time
	CreatedAt       time.Time
}

// Outcome is the decision for one registration request.
type Outcome string

const (
	OutcomeDispatched        Outcome = "dispatched"
	OutcomeQuotaExceeded     Outcome = "quota_exceeded"
	OutcomeDuplicateRejected Outcome = "duplicate_rejected"
)

// NotificationAttempt is the per-request decision artifact. It is never
// persisted on its own; the provider message ID is kept for audit logging
// only.
type NotificationAttempt struct {
	Outcome           Outcome
	ProviderMessageID string
}
