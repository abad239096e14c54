package activity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testEntry(entityType, entityID, category, weight, summary string, daysAgo int) Entry {
	return Entry{
		EventID:           "test-" + summary,
		EventType:         "TestEvent",
		OccurredAt:        time.Now().AddDate(0, 0, -daysAgo).UTC().Truncate(time.Microsecond),
		IndexedEntityType: entityType,
		IndexedEntityID:   entityID,
		EntityRole:        "subject",
		SourceRefs:        []SourceRef{{EntityType: entityType, EntityID: entityID, Role: "subject"}},
		Summary:           summary,
		Category:          category,
		Weight:            weight,
	}
}

// stores runs each test against both implementations.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	sqlStore := NewSQLStore(db, nil)
	require.NoError(t, sqlStore.CreateTable(context.Background()))
	return map[string]Store{"memory": NewMemoryStore(), "sqlite": sqlStore}
}

func TestStore_WriteAndQuery(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []Entry{
				testEntry("user", "alice", "asset", "info", "Laptop assigned", 10),
				testEntry("user", "alice", "request", "major", "Request fulfilled", 5),
				testEntry("user", "bob", "asset", "info", "Laptop returned", 10),
			}
			require.NoError(t, store.WriteEntries(ctx, entries))
			// duplicates are ignored
			require.NoError(t, store.WriteEntries(ctx, entries[:1]))

			results, _, total, err := store.QueryByEntity(ctx, "user", "alice", DefaultQueryOptions())
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			require.Len(t, results, 2)
			assert.Equal(t, "Request fulfilled", results[0].Summary, "newest first")
			assert.Equal(t, entries[0].SourceRefs, results[1].SourceRefs)
		})
	}
}

func TestStore_QueryByEntity_Filters(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.WriteEntries(ctx, []Entry{
				testEntry("asset", "a1", "asset", "info", "Edited", 5),
				testEntry("asset", "a1", "request", "major", "Fulfilled", 4),
				testEntry("asset", "a1", "asset", "info", "Ancient", 400),
			}))

			opts := DefaultQueryOptions()
			opts.Categories = []string{"request"}
			results, _, total, err := store.QueryByEntity(ctx, "asset", "a1", opts)
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, results, 1)
			assert.Equal(t, "request", results[0].Category)

			opts = DefaultQueryOptions()
			opts.MinWeight = "major"
			results, _, _, err = store.QueryByEntity(ctx, "asset", "a1", opts)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "major", results[0].Weight)

			results, _, total, err = store.QueryByEntity(ctx, "asset", "a1", DefaultQueryOptions())
			require.NoError(t, err)
			assert.Equal(t, 2, total, "six month window")
			assert.Len(t, results, 2)
		})
	}
}

func TestStore_QueryByEntity_Cursor(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				e := testEntry("request", "r1", "request", "info", "step", i)
				e.EventID = e.EventID + string(rune('a'+i))
				require.NoError(t, store.WriteEntries(ctx, []Entry{e}))
			}

			opts := DefaultQueryOptions()
			opts.Limit = 2
			page1, cursor, total, err := store.QueryByEntity(ctx, "request", "r1", opts)
			require.NoError(t, err)
			assert.Equal(t, 5, total)
			require.Len(t, page1, 2)
			require.NotEmpty(t, cursor)

			opts.Cursor = cursor
			page2, _, _, err := store.QueryByEntity(ctx, "request", "r1", opts)
			require.NoError(t, err)
			require.Len(t, page2, 2)
			assert.True(t, page2[0].OccurredAt.Before(page1[1].OccurredAt))
		})
	}
}

func TestStore_Search(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.WriteEntries(ctx, []Entry{
				testEntry("user", "alice", "asset", "info", "Laptop reassigned to Bob", 5),
				testEntry("asset", "a1", "asset", "info", "Laptop reassigned to Bob", 5),
				testEntry("user", "bob", "request", "info", "Request rejected", 3),
			}))

			results, total, err := store.Search(ctx, "LAPTOP", DefaultSearchOptions())
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			assert.Len(t, results, 2)

			opts := DefaultSearchOptions()
			opts.EntityType = "user"
			results, total, err = store.Search(ctx, "laptop", opts)
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, results, 1)
			assert.Equal(t, "user", results[0].IndexedEntityType)

			results, total, err = store.Search(ctx, "zzzznotfound", DefaultSearchOptions())
			require.NoError(t, err)
			assert.Zero(t, total)
			assert.Empty(t, results)
		})
	}
}

func TestStore_EmptyStore(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			results, _, total, err := store.QueryByEntity(context.Background(), "user", "nobody", DefaultQueryOptions())
			require.NoError(t, err)
			assert.Zero(t, total)
			assert.Empty(t, results)
		})
	}
}

func TestIsAtLeastWeight(t *testing.T) {
	assert.True(t, IsAtLeastWeight("critical", "major"))
	assert.True(t, IsAtLeastWeight("major", "major"))
	assert.False(t, IsAtLeastWeight("info", "minor"))
	assert.False(t, IsAtLeastWeight("bogus", "info"))
}
