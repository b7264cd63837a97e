// Package sqlite provides the SQLite flavour of the relational backend.
package sqlite

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/mwantia/treefs/backend/sqldb"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var Dialect = sqldb.Dialect{
	Name:        "sqlite",
	Placeholder: sq.Question,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS treefs_nodes (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			parent TEXT NOT NULL,
			name TEXT NOT NULL,
			is_dir INTEGER NOT NULL,
			mode INTEGER NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			content_type TEXT NOT NULL DEFAULT '',
			create_time INTEGER NOT NULL,
			modify_time INTEGER NOT NULL,
			access_time INTEGER NOT NULL,
			change_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_treefs_nodes_parent ON treefs_nodes(parent)`,
		`CREATE TABLE IF NOT EXISTS treefs_chunks (
			node_id TEXT NOT NULL REFERENCES treefs_nodes(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			content BLOB NOT NULL,
			PRIMARY KEY (node_id, seq)
		)`,
	},
}

// NewSQLiteBackend creates a new SQLite-backed backend.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string, opts ...sqldb.SQLOption) (*sqldb.SQLBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Every connection of an in-memory database is a separate database, and
	// file databases only allow a single writer anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if dbPath != ":memory:" && !strings.Contains(dbPath, "mode=memory") {
		// Enable WAL mode for better concurrency
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	backend, err := sqldb.NewSQLBackend(db, Dialect, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}
