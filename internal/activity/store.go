package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/pkg/errors"
)

// Store is the interface for reading and writing activity entries.
// Entries live outside the record tables and are never updated.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []Entry) error

	// QueryByEntity returns activity entries for a specific entity.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)

	// Search matches activity summaries case-insensitively.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []Entry, totalCount int, err error)
}

// Schema creates the activity_entries table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS activity_entries (
		event_id            TEXT    NOT NULL,
		event_type          TEXT    NOT NULL,
		occurred_at         INTEGER NOT NULL,
		indexed_entity_type TEXT    NOT NULL,
		indexed_entity_id   TEXT    NOT NULL,
		entity_role         TEXT    NOT NULL,
		source_refs         TEXT    NOT NULL DEFAULT '[]',
		summary             TEXT    NOT NULL,
		category            TEXT    NOT NULL,
		weight              TEXT    NOT NULL,
		actor               TEXT    NOT NULL DEFAULT '',
		payload             TEXT,
		PRIMARY KEY (indexed_entity_type, indexed_entity_id, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_entity_time
		ON activity_entries (indexed_entity_type, indexed_entity_id, occurred_at DESC)`,
}

const table = "activity_entries"

var columns = []string{
	"event_id", "event_type", "occurred_at", "indexed_entity_type", "indexed_entity_id",
	"entity_role", "source_refs", "summary", "category", "weight", "actor", "payload",
}

// SQLStore implements Store on SQLite.
type SQLStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, log: logger}
}

// CreateTable creates the activity_entries table and its index.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "creating activity table")
		}
	}
	return nil
}

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.SQLite) }

// WriteEntries inserts activity entries, ignoring ones already present.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ins := builder().Insert(table).Columns(columns...)
	for _, e := range entries {
		refs, _ := json.Marshal(e.SourceRefs)
		ins.Values(
			e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refs), e.Summary, e.Category, e.Weight, e.Actor, string(e.Payload),
		)
	}
	ins.OnConflict(entsql.DoNothing())
	query, args := ins.Query()
	_, err := s.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "writing activity entries")
}

// QueryByEntity returns activity entries for a specific entity with filtering and pagination.
func (s *SQLStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) ([]Entry, string, int, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("indexed_entity_type", entityType),
		entsql.EQ("indexed_entity_id", entityID),
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", opts.Until.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
	}
	if opts.MinWeight != "" {
		var weights []string
		for w := range WeightOrder {
			if IsAtLeastWeight(w, opts.MinWeight) {
				weights = append(weights, w)
			}
		}
		preds = append(preds, entsql.In("weight", anySlice(weights)...))
	}

	total, err := s.count(ctx, preds)
	if err != nil {
		return nil, "", 0, err
	}

	if t, ok := opts.cursorTime(); ok {
		preds = append(preds, entsql.LT("occurred_at", t.UnixNano()))
	}
	limit := opts.limit()
	b := builder()
	sel := b.Select(columns...).From(b.Table(table)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit + 1) // fetch one extra for cursor
	entries, err := s.scan(ctx, sel)
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = cursorOf(entries[len(entries)-1])
	}
	return entries, nextCursor, total, nil
}

// Search matches activity summaries case-insensitively.
func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]Entry, int, error) {
	preds := []*entsql.Predicate{entsql.ContainsFold("summary", query)}
	if opts.EntityType != "" {
		preds = append(preds, entsql.EQ("indexed_entity_type", opts.EntityType))
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
	}

	total, err := s.count(ctx, preds)
	if err != nil {
		return nil, 0, err
	}
	b := builder()
	entries, err := s.scan(ctx, b.Select(columns...).From(b.Table(table)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(opts.limit()))
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *SQLStore) count(ctx context.Context, preds []*entsql.Predicate) (int, error) {
	b := builder()
	query, args := b.Select(entsql.Count("*")).From(b.Table(table)).Where(entsql.And(preds...)).Query()
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "counting activity entries")
	}
	return n, nil
}

func (s *SQLStore) scan(ctx context.Context, sel *entsql.Selector) ([]Entry, error) {
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying activity entries")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e        Entry
			at       int64
			refsJSON string
			payload  sql.NullString
		)
		err := rows.Scan(
			&e.EventID, &e.EventType, &at, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &e.Weight, &e.Actor, &payload,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scanning activity entry")
		}
		e.OccurredAt = time.Unix(0, at).UTC()
		if err := json.Unmarshal([]byte(refsJSON), &e.SourceRefs); err != nil {
			s.log.Warn("malformed activity source refs", "event", e.EventID, "error", err)
			e.SourceRefs = []SourceRef{}
		}
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "reading activity entries")
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
