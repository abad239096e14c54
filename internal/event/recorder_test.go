package event

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/assetdesk/internal/activity"
	"github.com/matthewbaird/assetdesk/internal/domain"
)

type capture struct {
	mu   sync.Mutex
	evts []DomainEvent
}

func (c *capture) Publish(_ context.Context, evt DomainEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evts = append(c.evts, evt)
}

func TestActivityRecorder_FansOutPerEntity(t *testing.T) {
	ctx := context.Background()
	store := activity.NewMemoryStore()
	bus := &capture{}
	rec := NewActivityRecorder(store)
	rec.SetPublisher(bus)

	evt := NewRequestFulfilled(RequestPayload{
		RequestID: "req-00000001", FamilyID: "fam-1", RequestedBy: "u1", TaskID: "task-1", AssetID: "a1",
	}, domain.Actor{Name: "admin"})
	require.NoError(t, rec.Record(ctx, evt))

	for _, r := range evt.AffectedEntities {
		entries, _, total, err := store.QueryByEntity(ctx, r.EntityType, r.EntityID, activity.DefaultQueryOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, total, r.EntityType)
		assert.Equal(t, r.Role, entries[0].EntityRole)
		assert.Equal(t, "admin", entries[0].Actor)
	}
	require.Len(t, bus.evts, 1)
	assert.Equal(t, "request_fulfilled", bus.evts[0].EventType)
}

func TestActivityRecorder_IndexesEntityOnce(t *testing.T) {
	ctx := context.Background()
	store := activity.NewMemoryStore()
	rec := NewActivityRecorder(store)

	evt := NewAssetAssigned(AssetPayload{ID: "a1", AssetID: "HARD-T14-0001", FamilyID: "fam-1", Owners: []string{"u1", "u1"}}, domain.System)
	require.NoError(t, rec.Record(ctx, evt))

	_, _, total, err := store.QueryByEntity(ctx, "user", "u1", activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUserDeleted_DanglingIsCritical(t *testing.T) {
	evt := NewUserDeleted(UserPayload{ID: "u1", FullName: "Ada", Dangling: []string{"a1", "a2"}}, domain.System)
	assert.Equal(t, "critical", evt.Weight)
	assert.Len(t, evt.AffectedEntities, 3)

	clean := NewUserDeleted(UserPayload{ID: "u2", FullName: "Grace"}, domain.System)
	assert.Equal(t, "minor", clean.Weight)
}

func TestEmit_NilRecorder(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, NewUserCreated(UserPayload{ID: "u1"}, domain.System))
	})
}
