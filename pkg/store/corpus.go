// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureCorpus looks up a corpus by name, creating it if it doesn't exist
// yet (§3 "Corpus and ingest-run metadata"). Corpus names are unique, so a
// concurrent creator's insert simply loses the race and falls back to the
// lookup.
func (s *Store) EnsureCorpus(ctx context.Context, name string, now time.Time) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `SELECT id FROM corpus WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup corpus %q: %w", name, err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO corpus (name, created_at) VALUES (?, ?)`, name, now.Unix())
	if err != nil {
		if lookupErr := s.db.GetContext(ctx, &id, `SELECT id FROM corpus WHERE name = ?`, name); lookupErr == nil {
			return id, nil
		}
		return 0, fmt.Errorf("create corpus %q: %w", name, err)
	}
	return res.LastInsertId()
}

// IngestRun records a keyword-search or ingest-pdf invocation for audit
// purposes (§3, §6 "keyword-search ... persists a search run").
type IngestRun struct {
	Query       string
	SourcePDF   string
	FiltersJSON string
}

// RecordIngestRun inserts one ingest_run row and returns its id.
func (s *Store) RecordIngestRun(ctx context.Context, run IngestRun, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_run (query, source_pdf, filters_json, started_at)
		VALUES (?, ?, ?, ?)`,
		run.Query, run.SourcePDF, run.FiltersJSON, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("record ingest run: %w", err)
	}
	return res.LastInsertId()
}

// AddToCorpus links a stage-table row into a corpus's membership set,
// ignoring duplicates (§3 "corpus_items").
func (s *Store) AddToCorpus(ctx context.Context, corpusID int64, table string, rowID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO corpus_items (corpus_id, table_name, row_id) VALUES (?, ?, ?)`,
		corpusID, table, rowID,
	)
	if err != nil {
		return fmt.Errorf("add row %d of %s to corpus %d: %w", rowID, table, corpusID, err)
	}
	return nil
}
