// Package event provides domain event recording for services.
// Events are fanned out as activity.Entry records via the activity.Store
// interface, then published to the in-process event bus for downstream
// consumers.
package event

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/activity"
)

// Recorder writes domain events to the activity store.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder implements Recorder by fanning out a DomainEvent into
// one activity.Entry per affected entity, then writing via activity.Store.
// If a Publisher is set, the event is also published to the event bus
// after the store write succeeds.
type ActivityRecorder struct {
	store activity.Store
	bus   Publisher
}

// NewActivityRecorder creates a new ActivityRecorder backed by the given store.
func NewActivityRecorder(store activity.Store) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record indexes evt once under each distinct entity it references, writes
// the entries and publishes evt. An entity referenced twice, such as a
// user who is both previous and new owner, keeps its first role.
func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	entries := make([]activity.Entry, 0, len(evt.AffectedEntities))
	seen := make(map[activity.SourceRef]bool, len(evt.AffectedEntities))
	for _, ref := range evt.AffectedEntities {
		if ref.EntityID == "" {
			continue
		}
		key := activity.SourceRef{EntityType: ref.EntityType, EntityID: ref.EntityID}
		if seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, activity.Entry{
			EventID:           evt.ID,
			EventType:         evt.EventType,
			OccurredAt:        evt.OccurredAt,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			SourceRefs:        evt.AffectedEntities,
			Summary:           evt.Summary,
			Category:          evt.Category,
			Weight:            evt.Weight,
			Actor:             evt.Actor,
			Payload:           evt.Payload,
		})
	}
	if err := r.store.WriteEntries(ctx, entries); err != nil {
		return errors.Wrapf(err, "indexing %s", evt.EventType)
	}

	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// Emit records evt if rec is set. Recording is best-effort: a failure is
// logged and never fails the command that produced the event.
func Emit(ctx context.Context, rec Recorder, evts ...DomainEvent) {
	if rec == nil {
		return
	}
	for _, evt := range evts {
		if err := rec.Record(ctx, evt); err != nil {
			slog.WarnContext(ctx, "event recording failed", "event", evt.EventType, "error", err)
		}
	}
}
