package eventbus

import (
	"context"
	"log/slog"

	"github.com/matthewbaird/assetdesk/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	log *slog.Logger
}

func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{log: logger}
}

func (c *LogConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		entities[i] = ref.EntityType + ":" + ref.EntityID
	}
	c.log.InfoContext(ctx, "event",
		"type", evt.EventType,
		"category", evt.Category,
		"weight", evt.Weight,
		"actor", evt.Actor,
		"summary", evt.Summary,
		"entities", entities,
	)
	return nil
}
