// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

import (
	"context"
	"fmt"
)

// ExportFilter narrows ListExportRows (§6 export).
type ExportFilter struct {
	CorpusID       *int64
	Year           *int
	DownloadedOnly bool // restrict to downloaded_references, for pdfs_zip/bundle_zip
}

// ListExportRows returns a read-only snapshot of enriched/downloaded rows
// for export, optionally scoped to a corpus and/or year (§6 "export...
// read-only snapshot").
func (s *Store) ListExportRows(ctx context.Context, filter ExportFilter) ([]EnrichedRow, error) {
	tables := []string{TableEnriched, TableDownloaded}
	if filter.DownloadedOnly {
		tables = []string{TableDownloaded}
	}

	var rows []EnrichedRow
	for _, table := range tables {
		query := `SELECT t.* FROM ` + table + ` t WHERE 1=1`
		var args []any
		if filter.CorpusID != nil {
			query += ` AND EXISTS (SELECT 1 FROM corpus_items ci WHERE ci.table_name = ? AND ci.row_id = t.id AND ci.corpus_id = ?)`
			args = append(args, table, *filter.CorpusID)
		}
		if filter.Year != nil {
			query += ` AND t.year = ?`
			args = append(args, *filter.Year)
		}
		query += ` ORDER BY t.id ASC`

		var tableRows []EnrichedRow
		if err := s.db.SelectContext(ctx, &tableRows, query, args...); err != nil {
			return nil, fmt.Errorf("list export rows from %s: %w", table, err)
		}
		rows = append(rows, tableRows...)
	}
	return rows, nil
}
