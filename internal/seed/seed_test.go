package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/guard"
	"github.com/matthewbaird/assetdesk/internal/inventory"
	"github.com/matthewbaird/assetdesk/internal/lifecycle"
	"github.com/matthewbaird/assetdesk/internal/settings"
	"github.com/matthewbaird/assetdesk/internal/store"
)

func newServices() (Services, *store.MemoryStore) {
	st := store.NewMemoryStore()
	cfg := settings.New(st, nil)
	return Services{
		Settings:  cfg,
		Inventory: inventory.New(st, cfg, nil),
		Lifecycle: lifecycle.New(st, guard.NewMemoryGuard(), nil),
	}, st
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	svc, st := newServices()

	rep, err := Run(ctx, svc, nil)
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
	assert.Equal(t, 12, rep.References)
	assert.Equal(t, 4, rep.Users)
	assert.Equal(t, 4, rep.Families)
	assert.Equal(t, 6, rep.Assets)
	assert.Equal(t, 2, rep.Requests)

	vendors, err := svc.Settings.References(ctx, domain.ReferenceVendors)
	require.NoError(t, err)
	assert.Contains(t, vendors, "Lenovo")

	reqs, err := st.ListRequests(ctx)
	require.NoError(t, err)
	statuses := map[domain.RequestStatus]int{}
	for _, r := range reqs {
		statuses[r.Status]++
	}
	assert.Equal(t, 1, statuses[domain.RequestFulfilled])
	assert.Equal(t, 1, statuses[domain.RequestPending])

	// The fulfilled laptop came from stock, so its history is on Ada.
	all, err := st.ListUsers(ctx)
	require.NoError(t, err)
	for _, u := range all {
		if u.Email == "ada@example.com" {
			require.Len(t, u.History, 1)
			assert.Equal(t, "HARD-T14-0001", u.History[0].AssetID)
		}
	}
}

func TestRun_SkipsWhenSeeded(t *testing.T) {
	ctx := context.Background()
	svc, _ := newServices()

	_, err := Run(ctx, svc, nil)
	require.NoError(t, err)
	rep, err := Run(ctx, svc, nil)
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.Zero(t, rep.Users)
}
