package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/assetdesk/internal/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLStore implements Store on SQLite. Statements are built with the ent
// SQL builder and run over database/sql.
type SQLStore struct {
	db  *sql.DB
	q   querier
	log *slog.Logger
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, q: db, log: logger}
}

// OpenSQLite opens (creating if needed) the SQLite database at dsn and
// applies the built-in schema.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite")
	}
	// SQLite allows a single writer; one connection keeps transactions simple.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "configuring sqlite")
	}
	s := NewSQLStore(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates any missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "applying schema")
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// DB exposes the handle so other tables can share the connection.
func (s *SQLStore) DB() *sql.DB { return s.db }

// InTx runs fn inside a database transaction. Calls made on an already
// transactional store join the outer transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(&SQLStore{db: s.db, q: tx, log: s.log}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.SQLite) }

func (s *SQLStore) exec(ctx context.Context, b entsql.Querier, what string) (int64, error) {
	query, args := b.Query()
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, errors.Wrapf(ErrConflict, "%s: %v", what, err)
		}
		return 0, errors.Wrap(err, what)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLStore) update(ctx context.Context, b entsql.Querier, what string) error {
	n, err := s.exec(ctx, b, what)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, what)
	}
	return nil
}

// queryDocs decodes the doc column of every selected row into T. Rows whose
// document cannot be decoded are skipped with a warning.
func queryDocs[T any](ctx context.Context, s *SQLStore, sel *entsql.Selector, table string) ([]T, error) {
	query, args := sel.Query()
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", table)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			s.log.Warn("skipping malformed record", "table", table, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, errors.Wrapf(rows.Err(), "reading %s", table)
}

func queryOne[T any](ctx context.Context, s *SQLStore, table, id string) (T, error) {
	b := builder()
	docs, err := queryDocs[T](ctx, s, b.Select("doc").From(b.Table(table)).Where(entsql.EQ("id", id)), table)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(docs) == 0 {
		var zero T
		return zero, errors.Wrapf(ErrNotFound, "%s %s", table, id)
	}
	return docs[0], nil
}

func listAll[T any](ctx context.Context, s *SQLStore, table string) ([]T, error) {
	b := builder()
	return queryDocs[T](ctx, s, b.Select("doc").From(b.Table(table)).OrderBy("seq"), table)
}

func mustDoc(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// ── families ────────────────────────────────────────────────────────────────

func (s *SQLStore) ListAssetFamilies(ctx context.Context) ([]domain.AssetFamily, error) {
	return listAll[domain.AssetFamily](ctx, s, "asset_families")
}

func (s *SQLStore) GetAssetFamily(ctx context.Context, id string) (domain.AssetFamily, error) {
	return queryOne[domain.AssetFamily](ctx, s, "asset_families", id)
}

func (s *SQLStore) CreateAssetFamily(ctx context.Context, f domain.AssetFamily) error {
	_, err := s.exec(ctx, builder().Insert("asset_families").
		Columns("id", "asset_type", "product_code", "doc").
		Values(f.ID, string(f.AssetType), f.ProductCode, mustDoc(f)), "creating family")
	return err
}

func (s *SQLStore) UpdateAssetFamily(ctx context.Context, f domain.AssetFamily) error {
	return s.update(ctx, builder().Update("asset_families").
		Set("asset_type", string(f.AssetType)).
		Set("product_code", f.ProductCode).
		Set("doc", mustDoc(f)).
		Where(entsql.EQ("id", f.ID)), "updating family "+f.ID)
}

// ── assets ──────────────────────────────────────────────────────────────────

func (s *SQLStore) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	return listAll[domain.Asset](ctx, s, "assets")
}

func (s *SQLStore) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	return queryOne[domain.Asset](ctx, s, "assets", id)
}

func (s *SQLStore) CreateAsset(ctx context.Context, a domain.Asset) error {
	return s.CreateAssetsBulk(ctx, []domain.Asset{a})
}

// CreateAssetsBulk inserts every asset in a single statement.
func (s *SQLStore) CreateAssetsBulk(ctx context.Context, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	ins := builder().Insert("assets").Columns("id", "asset_id", "family_id", "status", "doc")
	for _, a := range assets {
		ins.Values(a.ID, a.AssetID, a.FamilyID, string(a.Status), mustDoc(a))
	}
	_, err := s.exec(ctx, ins, "creating assets")
	return err
}

func (s *SQLStore) UpdateAsset(ctx context.Context, a domain.Asset) error {
	return s.update(ctx, builder().Update("assets").
		Set("asset_id", a.AssetID).
		Set("family_id", a.FamilyID).
		Set("status", string(a.Status)).
		Set("doc", mustDoc(a)).
		Where(entsql.EQ("id", a.ID)), "updating asset "+a.ID)
}

// ── users ───────────────────────────────────────────────────────────────────

// User history lives in its own column so a malformed history blob only
// costs the history, not the user.
func (s *SQLStore) queryUsers(ctx context.Context, sel *entsql.Selector) ([]domain.User, error) {
	query, args := sel.Query()
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		var doc, history []byte
		if err := rows.Scan(&doc, &history); err != nil {
			return nil, errors.Wrap(err, "scanning users")
		}
		var u domain.User
		if err := json.Unmarshal(doc, &u); err != nil {
			s.log.Warn("skipping malformed record", "table", "users", "error", err)
			continue
		}
		u.History = []domain.HistoryEntry{}
		if err := json.Unmarshal(history, &u.History); err != nil {
			s.log.Warn("malformed user history, treating as empty", "user", u.ID, "error", err)
			u.History = []domain.HistoryEntry{}
		}
		out = append(out, u)
	}
	return out, errors.Wrap(rows.Err(), "reading users")
}

func userColumns(u domain.User) (doc, history string) {
	h := u.History
	if h == nil {
		h = []domain.HistoryEntry{}
	}
	u.History = nil
	return mustDoc(u), mustDoc(h)
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	b := builder()
	return s.queryUsers(ctx, b.Select("doc", "history").From(b.Table("users")).OrderBy("seq"))
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	b := builder()
	users, err := s.queryUsers(ctx, b.Select("doc", "history").From(b.Table("users")).Where(entsql.EQ("id", id)))
	if err != nil {
		return domain.User{}, err
	}
	if len(users) == 0 {
		return domain.User{}, errors.Wrapf(ErrNotFound, "user %s", id)
	}
	return users[0], nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u domain.User) error {
	doc, history := userColumns(u)
	_, err := s.exec(ctx, builder().Insert("users").
		Columns("id", "email", "doc", "history").
		Values(u.ID, u.Email, doc, history), "creating user")
	return err
}

func (s *SQLStore) UpdateUser(ctx context.Context, u domain.User) error {
	doc, history := userColumns(u)
	return s.update(ctx, builder().Update("users").
		Set("email", u.Email).
		Set("doc", doc).
		Set("history", history).
		Where(entsql.EQ("id", u.ID)), "updating user "+u.ID)
}

func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	return s.update(ctx, builder().Delete("users").Where(entsql.EQ("id", id)), "deleting user "+id)
}

// ── requests and tasks ──────────────────────────────────────────────────────

func (s *SQLStore) ListRequests(ctx context.Context) ([]domain.Request, error) {
	return listAll[domain.Request](ctx, s, "requests")
}

func (s *SQLStore) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	return queryOne[domain.Request](ctx, s, "requests", id)
}

func (s *SQLStore) CreateRequest(ctx context.Context, r domain.Request) error {
	_, err := s.exec(ctx, builder().Insert("requests").
		Columns("id", "status", "doc").
		Values(r.ID, string(r.Status), mustDoc(r)), "creating request")
	return err
}

func (s *SQLStore) UpdateRequest(ctx context.Context, r domain.Request) error {
	return s.update(ctx, builder().Update("requests").
		Set("status", string(r.Status)).
		Set("doc", mustDoc(r)).
		Where(entsql.EQ("id", r.ID)), "updating request "+r.ID)
}

func (s *SQLStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return listAll[domain.Task](ctx, s, "tasks")
}

func (s *SQLStore) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := s.exec(ctx, builder().Insert("tasks").
		Columns("id", "request_id", "doc").
		Values(t.ID, t.RequestID, mustDoc(t)), "creating task")
	return err
}

// ── reference data ──────────────────────────────────────────────────────────

func (s *SQLStore) ListReferences(ctx context.Context, kind domain.ReferenceKind) ([]domain.Reference, error) {
	b := builder()
	query, args := b.Select("id", "name").From(b.Table("reference_items")).
		Where(entsql.EQ("kind", string(kind))).OrderBy("seq").Query()
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", kind)
	}
	defer rows.Close()

	var out []domain.Reference
	for rows.Next() {
		r := domain.Reference{Kind: kind}
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", kind)
		}
		out = append(out, r)
	}
	return out, errors.Wrapf(rows.Err(), "reading %s", kind)
}

func (s *SQLStore) AddReference(ctx context.Context, ref domain.Reference) error {
	_, err := s.exec(ctx, builder().Insert("reference_items").
		Columns("id", "kind", "name").
		Values(ref.ID, string(ref.Kind), ref.Name), "adding "+string(ref.Kind))
	return err
}

func (s *SQLStore) DeleteReference(ctx context.Context, kind domain.ReferenceKind, name string) error {
	return s.update(ctx, builder().Delete("reference_items").
		Where(entsql.And(entsql.EQ("kind", string(kind)), entsql.EQ("name", name))),
		"deleting "+string(kind)+" "+name)
}

// ── configuration ───────────────────────────────────────────────────────────

func (s *SQLStore) GetNamedConfiguration(ctx context.Context, key string) ([]string, error) {
	b := builder()
	docs, err := queryDocs[[]string](ctx, s,
		b.Select("doc").From(b.Table("named_configuration")).Where(entsql.EQ("name", key)),
		"named_configuration")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []string{}, nil
	}
	return docs[0], nil
}

func (s *SQLStore) SetNamedConfiguration(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	_, err := s.exec(ctx, builder().Insert("named_configuration").
		Columns("name", "doc").
		Values(key, mustDoc(values)).
		OnConflict(entsql.ConflictColumns("name"), entsql.ResolveWithNewValues()),
		"saving configuration "+key)
	return err
}

func (s *SQLStore) GetLayout(ctx context.Context, key string) ([]byte, error) {
	b := builder()
	query, args := b.Select("blob").From(b.Table("layouts")).Where(entsql.EQ("context", key)).Query()
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying layouts")
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "reading layouts")
		}
		return nil, errors.Wrapf(ErrNotFound, "layout %s", key)
	}
	var blob []byte
	if err := rows.Scan(&blob); err != nil {
		return nil, errors.Wrap(err, "scanning layouts")
	}
	return blob, nil
}

func (s *SQLStore) SetLayout(ctx context.Context, key string, blob []byte) error {
	_, err := s.exec(ctx, builder().Insert("layouts").
		Columns("context", "blob").
		Values(key, string(blob)).
		OnConflict(entsql.ConflictColumns("context"), entsql.ResolveWithNewValues()),
		"saving layout "+key)
	return err
}
