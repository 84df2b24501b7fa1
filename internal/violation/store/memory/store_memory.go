// Package memory provides an in-memory RecordStore for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"platewatch/internal/violation/models"
	"platewatch/internal/violation/ports"
	"platewatch/internal/violation/throttle"
)

type Store struct {
	mu      sync.Mutex
	records map[models.RecordKey]*models.ViolationRecord
}

func New() *Store {
	return &Store{records: make(map[models.RecordKey]*models.ViolationRecord)}
}

func (s *Store) Find(_ context.Context, key models.RecordKey) (*models.ViolationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	// Copy so callers never alias the stored log.
	out := &models.ViolationRecord{
		Key:             rec.Key,
		NotificationLog: append([]time.Time(nil), rec.NotificationLog...),
		CreatedAt:       rec.CreatedAt,
	}
	return out, nil
}

func (s *Store) CreateWithAttempt(_ context.Context, key models.RecordKey, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; ok {
		return ports.ErrAlreadyExists
	}
	s.records[key] = &models.ViolationRecord{
		Key:             key,
		NotificationLog: []time.Time{now.UTC()},
		CreatedAt:       now.UTC(),
	}
	return nil
}

func (s *Store) AppendAttempt(_ context.Context, key models.RecordKey, now time.Time, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return ports.ErrNotFound
	}
	if !throttle.Admit(rec.NotificationLog, now, limit) {
		return ports.ErrQuotaExceeded
	}
	rec.NotificationLog = append(rec.NotificationLog, now.UTC())
	return nil
}

func (s *Store) Exists(_ context.Context, key models.RecordKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[key]
	return ok, nil
}

func (s *Store) Health(context.Context) error {
	return nil
}
