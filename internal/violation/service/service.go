// Package service implements the admission flow for violation
// notifications: duplicate policy, daily quota, and dispatch through the
// messaging provider. Persistence always precedes dispatch so the quota
// reflects every attempt even when the provider fails.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"platewatch/internal/audit"
	"platewatch/internal/platform/metrics"
	"platewatch/internal/violation/models"
	"platewatch/internal/violation/ports"
	dErrors "platewatch/pkg/domain-errors"
)

// Policy selects how repeat submissions for the same record are handled.
type Policy string

const (
	// PolicyQuotaPerDay admits repeats until the record's daily quota is
	// spent. This is the canonical policy of the source system.
	PolicyQuotaPerDay Policy = "quota_per_day"
	// PolicyRejectOnExisting rejects any submission whose record already
	// exists, regardless of quota.
	PolicyRejectOnExisting Policy = "reject_on_existing"
)

const (
	// DefaultDailyLimit caps notifications per record per UTC calendar day.
	DefaultDailyLimit = 5

	messageTemplate = "Traffic violation: no helmet detected. Plate: %s."
)

type Service struct {
	store      ports.RecordStore
	notifier   ports.Notifier
	policy     Policy
	dailyLimit int
	logger     *slog.Logger
	audit      audit.Publisher
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithDailyLimit(limit int) Option {
	return func(s *Service) { s.dailyLimit = limit }
}

// WithClock overrides the wall clock; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store ports.RecordStore, notifier ports.Notifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	svc := &Service{
		store:      store,
		notifier:   notifier,
		policy:     PolicyQuotaPerDay,
		dailyLimit: DefaultDailyLimit,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	switch svc.policy {
	case PolicyQuotaPerDay, PolicyRejectOnExisting:
	default:
		return nil, fmt.Errorf("unknown duplicate policy %q", svc.policy)
	}
	return svc, nil
}

// RegisterViolation runs one admission end to end. The returned attempt
// carries the decision; a non-nil error means the request failed before a
// decision (validation, store) or after persistence (provider).
func (s *Service) RegisterViolation(ctx context.Context, plate, phone, email string) (*models.NotificationAttempt, error) {
	plate = strings.TrimSpace(plate)
	phone = strings.TrimSpace(phone)
	email = strings.TrimSpace(email)
	if plate == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "numberplate is required")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phonenumber is required")
	}

	key := models.RecordKey{Plate: plate, Phone: phone, Email: email}
	now := s.now()

	var admitted bool
	var err error
	switch s.policy {
	case PolicyRejectOnExisting:
		admitted, err = s.admitRejectOnExisting(ctx, key, now)
	default:
		admitted, err = s.admitQuotaPerDay(ctx, key, now)
	}
	if err != nil {
		return nil, err
	}
	if !admitted {
		// admit* already emitted the audit event and metric.
		switch s.policy {
		case PolicyRejectOnExisting:
			return &models.NotificationAttempt{Outcome: models.OutcomeDuplicateRejected}, nil
		default:
			return &models.NotificationAttempt{Outcome: models.OutcomeQuotaExceeded}, nil
		}
	}

	// The attempt is durably recorded; only now contact the provider. A
	// provider failure leaves the log entry in place: the quota counts
	// attempts, not deliveries.
	sid, err := s.notifier.Send(ctx, phone, fmt.Sprintf(messageTemplate, plate))
	if err != nil {
		s.count(func(m *metrics.Metrics) { m.ProviderFailures.Inc() })
		ev := audit.NewEvent(audit.ActionProviderFailed, plate, now)
		ev.Detail = err.Error()
		s.publish(ctx, ev)
		s.logger.ErrorContext(ctx, "provider dispatch failed",
			"plate", plate,
			"error", err.Error(),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeProviderFailure, "messaging provider call failed")
	}

	s.count(func(m *metrics.Metrics) { m.NotificationsDispatched.Inc() })
	ev := audit.NewEvent(audit.ActionDispatched, plate, now)
	ev.ProviderMessageID = sid
	s.publish(ctx, ev)
	s.logger.InfoContext(ctx, "notification dispatched",
		"plate", plate,
		"provider_message_id", sid,
	)

	return &models.NotificationAttempt{
		Outcome:           models.OutcomeDispatched,
		ProviderMessageID: sid,
	}, nil
}

// admitQuotaPerDay records the attempt, creating the record on first sight.
// The store performs the quota check and append atomically.
func (s *Service) admitQuotaPerDay(ctx context.Context, key models.RecordKey, now time.Time) (bool, error) {
	err := s.store.AppendAttempt(ctx, key, now, s.dailyLimit)
	if errors.Is(err, ports.ErrNotFound) {
		err = s.store.CreateWithAttempt(ctx, key, now)
		if errors.Is(err, ports.ErrAlreadyExists) {
			// Lost the creation race; the append now sees the record.
			err = s.store.AppendAttempt(ctx, key, now, s.dailyLimit)
		}
	}
	if errors.Is(err, ports.ErrQuotaExceeded) {
		s.count(func(m *metrics.Metrics) { m.NotificationsDenied.WithLabelValues("quota_exceeded").Inc() })
		s.publish(ctx, audit.NewEvent(audit.ActionQuotaExceeded, key.Plate, now))
		s.logger.InfoContext(ctx, "notification denied, daily quota exhausted",
			"plate", key.Plate,
			"limit", s.dailyLimit,
		)
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeStoreFailure, "record store write failed")
	}
	return true, nil
}

// admitRejectOnExisting creates the record iff no record for the key exists;
// any existing record rejects the submission without touching the store.
func (s *Service) admitRejectOnExisting(ctx context.Context, key models.RecordKey, now time.Time) (bool, error) {
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeStoreFailure, "record store lookup failed")
	}
	if !exists {
		err = s.store.CreateWithAttempt(ctx, key, now)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ports.ErrAlreadyExists) {
			return false, dErrors.Wrap(err, dErrors.CodeStoreFailure, "record store write failed")
		}
		// Created concurrently; fall through to rejection.
	}

	s.count(func(m *metrics.Metrics) { m.NotificationsDenied.WithLabelValues("duplicate").Inc() })
	s.publish(ctx, audit.NewEvent(audit.ActionDuplicateRejected, key.Plate, now))
	s.logger.InfoContext(ctx, "notification denied, duplicate record",
		"plate", key.Plate,
	)
	return false, nil
}

func (s *Service) publish(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit publish failed",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}

func (s *Service) count(inc func(*metrics.Metrics)) {
	if s.metrics != nil {
		inc(s.metrics)
	}
}
