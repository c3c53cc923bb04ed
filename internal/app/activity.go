package app

import (
	"context"
	"time"

	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/model"
)

type ActivityPublisher interface {
	Publish(ctx context.Context, event model.ActivityEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.ActivityEvent) error { return nil }

// publishActivity never fails the caller's operation.
func publishActivity(ctx context.Context, publisher ActivityPublisher, event model.ActivityEvent) {
	if publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish activity failed", "type", event.Type, "error", err)
	}
}
