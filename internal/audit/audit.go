// Package audit captures structured decision events for the notification
// path. Publishing is best effort: a failed publish is logged and never
// fails the originating request.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions emitted by the admission service.
const (
	ActionDispatched        = "notification_dispatched"
	ActionQuotaExceeded     = "notification_quota_exceeded"
	ActionDuplicateRejected = "notification_duplicate_rejected"
	ActionProviderFailed    = "notification_provider_failed"
)

// Event is one audit entry. ProviderMessageID is set only for dispatched
// notifications.
type Event struct {
	ID                string    `json:"id"`
	Action            string    `json:"action"`
	Plate             string    `json:"plate"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Detail            string    `json:"detail,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh ID and the supplied timestamp.
func NewEvent(action, plate string, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Action:    action,
		Plate:     plate,
		Timestamp: at.UTC(),
	}
}

// Publisher delivers audit events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
