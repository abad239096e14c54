package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/assetdesk/internal/domain"
)

var now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func asset() domain.Asset {
	return domain.Asset{ID: "a1", AssetID: "HARD-LAP-0001", Title: "ThinkPad"}
}

func TestSynthesize_EntryCount(t *testing.T) {
	tests := []struct {
		name      string
		before    domain.Asset
		after     domain.Asset
		wantTypes []domain.HistoryType
	}{
		{
			name:   "no change",
			before: domain.Asset{AssignedUser: "u1", ActiveUsers: []string{"u1"}},
			after:  domain.Asset{AssignedUser: "u1", ActiveUsers: []string{"u1"}},
		},
		{
			name:      "first assignment",
			before:    domain.Asset{},
			after:     domain.Asset{AssignedUser: "u1"},
			wantTypes: []domain.HistoryType{domain.HistoryAssigned},
		},
		{
			name:      "return",
			before:    domain.Asset{AssignedUsers: []string{"u1", "u2"}},
			after:     domain.Asset{},
			wantTypes: []domain.HistoryType{domain.HistoryReturned},
		},
		{
			name:      "usage only",
			before:    domain.Asset{AssignedUser: "u1"},
			after:     domain.Asset{AssignedUser: "u1", ActiveUsers: []string{"u3"}},
			wantTypes: []domain.HistoryType{domain.HistoryUsageUpdate},
		},
		{
			name:      "both change",
			before:    domain.Asset{AssignedUser: "u1", ActiveUsers: []string{"u1"}},
			after:     domain.Asset{AssignedUser: "u2", ActiveUsers: []string{"u2"}},
			wantTypes: []domain.HistoryType{domain.HistoryReassigned, domain.HistoryUsageUpdate},
		},
		{
			name:   "reordered owners are the same set",
			before: domain.Asset{AssignedUsers: []string{"u1", "u2"}},
			after:  domain.Asset{AssignedUsers: []string{"u2", "u1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.before.AssetID, tt.after.AssetID = "X-1", "X-1"
			got := Synthesize(tt.before, tt.after, Options{Now: now})
			require.Len(t, got, len(tt.wantTypes))
			for i, e := range got {
				assert.Equal(t, tt.wantTypes[i], e.Type)
				assert.Equal(t, "X-1", e.AssetID)
				assert.Equal(t, "2026-03-14", e.Date)
			}
		})
	}
}

func TestSynthesize_LostRemoval(t *testing.T) {
	before := asset()
	before.AssignedUser = "u1"
	got := Synthesize(before, asset(), Options{Now: now, Lost: true, Notes: "left on train"})
	require.Len(t, got, 1)
	assert.Equal(t, domain.HistoryLost, got[0].Type)
	assert.Equal(t, "left on train", got[0].Notes)
}

// Reassigning U1 -> U2 yields one Reassigned entry delivered to both users.
func TestReassignment_FansOutToBothUsers(t *testing.T) {
	before := asset()
	before.AssignedUser = "U1"
	after := asset()
	after.AssignedUser = "U2"

	entries := Synthesize(before, after, Options{Now: now})
	require.Len(t, entries, 1)
	assert.Equal(t, domain.HistoryReassigned, entries[0].Type)
	assert.Equal(t, []string{"U1"}, entries[0].AssignedFrom)
	assert.Equal(t, []string{"U2"}, entries[0].AssignedTo)

	ws := WriteSet(entries)
	require.Len(t, ws, 2)
	assert.Equal(t, "U1", ws[0].UserID)
	assert.Equal(t, "U2", ws[1].UserID)
	for _, d := range ws {
		require.Len(t, d.Entries, 1)
		assert.Equal(t, entries[0].ID, d.Entries[0].ID)
		assert.Equal(t, "HARD-LAP-0001", d.Entries[0].AssetID)
	}
}

func TestWriteSet_UnionAcrossEntries(t *testing.T) {
	entries := []domain.HistoryEntry{
		{ID: "e1", AssignedFrom: []string{"u1"}, AssignedTo: []string{"u2"}},
		{ID: "e2", AssignedFrom: []string{"u2"}, AssignedTo: []string{"u3", "u2"}},
	}
	ws := WriteSet(entries)
	require.Len(t, ws, 3)
	assert.Equal(t, "u2", ws[1].UserID)
	assert.Len(t, ws[1].Entries, 2, "an entry is delivered once per user")
	assert.Len(t, ws[2].Entries, 1)
}

func TestForAsset_MergesSplitsAndDedupes(t *testing.T) {
	shared := domain.HistoryEntry{ID: "h1", AssetID: "HARD-LAP-0001", Date: "2026-01-01", Type: domain.HistoryReassigned}
	users := []domain.User{
		{ID: "u1", History: []domain.HistoryEntry{
			shared,
			{ID: "h2", AssetID: "OTHER", Date: "2026-05-01", Type: domain.HistoryAssigned},
		}},
		{ID: "u2", History: []domain.HistoryEntry{
			shared,
			{ID: "h3", AssetID: "HARD-LAP-0001", Date: "2026-02-01", Type: domain.HistoryUsageUpdate},
			{ID: "h4", AssetID: "HARD-LAP-0001", Date: "2026-03-01", Type: domain.HistoryReturned},
		}},
	}
	a := asset()
	a.MaintenanceLog = []domain.HistoryEntry{{ID: "m1", AssetID: "HARD-LAP-0001", Date: "2026-02-15", Type: domain.HistoryMaintenance}}

	log := ForAsset(a, users)
	require.Len(t, log.Assignments, 2)
	assert.Equal(t, "h4", log.Assignments[0].ID, "newest first")
	assert.Equal(t, "h1", log.Assignments[1].ID)
	require.Len(t, log.Usage, 1)
	assert.Equal(t, "h3", log.Usage[0].ID)
	require.Len(t, log.Maintenance, 1)
}

func TestSortNewestFirst_SameDateLatestWriteFirst(t *testing.T) {
	entries := []domain.HistoryEntry{
		{ID: "a", Date: "2026-01-01"},
		{ID: "b", Date: "2026-01-02"},
		{ID: "c", Date: "2026-01-02"},
	}
	SortNewestFirst(entries)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, "a", entries[2].ID)
}
