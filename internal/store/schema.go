package store

import "strings"

// Tables hold one JSON document per record plus the columns that carry
// uniqueness or lookup constraints. seq preserves insertion order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS asset_families (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		id           TEXT NOT NULL UNIQUE,
		asset_type   TEXT NOT NULL,
		product_code TEXT NOT NULL,
		doc          TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT NOT NULL UNIQUE,
		asset_id  TEXT NOT NULL UNIQUE COLLATE NOCASE,
		family_id TEXT NOT NULL,
		status    TEXT NOT NULL,
		doc       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_family ON assets (family_id, status)`,
	`CREATE TABLE IF NOT EXISTS users (
		seq     INTEGER PRIMARY KEY AUTOINCREMENT,
		id      TEXT NOT NULL UNIQUE,
		email   TEXT NOT NULL UNIQUE,
		doc     TEXT NOT NULL,
		history TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS requests (
		seq    INTEGER PRIMARY KEY AUTOINCREMENT,
		id     TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		doc    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		request_id TEXT NOT NULL UNIQUE,
		doc        TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reference_items (
		seq  INTEGER PRIMARY KEY AUTOINCREMENT,
		id   TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE (kind, name)
	)`,
	`CREATE TABLE IF NOT EXISTS named_configuration (
		name TEXT PRIMARY KEY,
		doc  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS layouts (
		context TEXT PRIMARY KEY,
		blob    TEXT NOT NULL
	)`,
}

// Schema returns the full DDL as a single script, as consumed by the
// declarative migration path.
func Schema() string {
	return strings.Join(schemaStatements, ";\n\n") + ";\n"
}
