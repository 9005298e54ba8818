// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package store implements the stage store (C2): the persistent tables for
// each pipeline stage and the only allowed mutating operations on them
// (§4.2). The dedup resolver and the download queue are exercised through
// the transactional methods defined here; the citation-edge recorder
// (pkg/graph) writes its edge table through DB().
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Config configures a Store.
type Config struct {
	// Path is the catalog database file. Use ":memory:" for an ephemeral,
	// in-process database (tests, one-shot CLI invocations).
	Path string
}

// Store wraps a single relational database file with foreign-key integrity
// enabled, per §3's "single relational store with foreign-key integrity
// enabled" requirement and §6's "single relational database file" contract.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the catalog database and enables
// foreign-key enforcement. Callers must call EnsureSchema before using the
// store against a fresh file.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	// modernc.org/sqlite serializes writers internally; a single connection
	// avoids "database is locked" churn under concurrent workers while the
	// store's own transactions provide the real serialization boundary.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sqlx handle. Reporting queries (export,
// graph-export) read through it, and pkg/graph's RecordEdges and
// BackfillEdges, called by pkg/expand and backfill-edges, write
// citation_edges and clear pending-edge markers through it outside any
// store transaction. Stage-table moves go through the methods in
// mutations.go.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// beginTx starts a transaction. SQLite's default isolation combined with a
// single open connection gives us the serializable-per-affected-row
// semantics §4.2 asks for without needing row-level locking support from the
// driver.
func (s *Store) beginTx() (*sqlx.Tx, error) {
	return s.db.Beginx()
}

func rollback(tx *sqlx.Tx) {
	_ = tx.Rollback()
}

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = sql.ErrNoRows
