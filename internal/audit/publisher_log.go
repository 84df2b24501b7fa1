package audit

import (
	"context"
	"log/slog"
)

// LogPublisher writes audit events to the structured log. It is the default
// sink when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "audit event",
		"audit_id", event.ID,
		"action", event.Action,
		"plate", event.Plate,
		"provider_message_id", event.ProviderMessageID,
		"detail", event.Detail,
		"timestamp", event.Timestamp,
	)
	return nil
}

func (p *LogPublisher) Close() {}
