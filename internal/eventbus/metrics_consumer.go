package eventbus

import (
	"context"

	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/metrics"
)

// MetricsConsumer counts dispatched events by type.
type MetricsConsumer struct{}

func NewMetricsConsumer() *MetricsConsumer { return &MetricsConsumer{} }

func (MetricsConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	metrics.EventsTotal.WithLabelValues(evt.EventType).Inc()
	return nil
}
