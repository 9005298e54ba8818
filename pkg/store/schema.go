// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

import "fmt"

const referenceColumns = `
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	year INTEGER,
	doi TEXT,
	openalex_id TEXT,
	entry_type TEXT,
	container TEXT,
	volume TEXT,
	issue TEXT,
	pages TEXT,
	publisher TEXT,
	url TEXT,
	isbn TEXT,
	issn TEXT,
	abstract TEXT,
	language TEXT,
	authors_json TEXT NOT NULL DEFAULT '[]',
	keywords_json TEXT NOT NULL DEFAULT '[]',
	normalized_doi TEXT,
	normalized_title TEXT,
	normalized_authors TEXT,
	ingest_source TEXT,
	corpus_id INTEGER,
	bibtex_entry_json TEXT,
	created_at INTEGER NOT NULL
`

const downloadColumns = `,
	download_state TEXT NOT NULL DEFAULT 'none',
	download_attempt_count INTEGER NOT NULL DEFAULT 0,
	download_claimed_by TEXT,
	download_lease_expires_at INTEGER,
	status_notes TEXT,
	file_path TEXT,
	checksum_pdf TEXT,
	download_source TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	source_work_openalex_id TEXT,
	pending_edge_relationship TEXT
`

// EnsureSchema creates every catalog table, index, and the merge/alias/edge
// side-tables if they don't already exist. It is idempotent and safe to call
// on every process startup, mirroring the embedded-backend bootstrap idiom:
// schema creation never destroys existing data and every statement is its
// own CREATE ... IF NOT EXISTS. The statements do not share a transaction,
// so a failing statement leaves the earlier ones applied; a later call
// creates whatever is still missing. Columns are never added to a table
// that already exists.
func (s *Store) EnsureSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, TableRaw, referenceColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s%s)`, TableEnriched, referenceColumns, downloadColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s%s)`, TableDownloaded, referenceColumns, downloadColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s,
			reason TEXT,
			failed_at INTEGER
		)`, TableFailedEnrichment, referenceColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s%s,
			reason TEXT,
			failed_at INTEGER
		)`, TableFailedDownload, referenceColumns, downloadColumns),

		`CREATE TABLE IF NOT EXISTS merge_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			incoming_fingerprint TEXT NOT NULL,
			matched_table TEXT NOT NULL,
			matched_id INTEGER NOT NULL,
			matched_field TEXT NOT NULL,
			action TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS alias_index (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			work_table TEXT NOT NULL,
			work_id INTEGER NOT NULL,
			alias_title_normalized TEXT NOT NULL,
			alias_year INTEGER,
			alias_language TEXT,
			relationship_type TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS citation_edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_openalex_id TEXT NOT NULL,
			target_openalex_id TEXT NOT NULL,
			relationship_type TEXT NOT NULL,
			UNIQUE(source_openalex_id, target_openalex_id, relationship_type)
		)`,

		`CREATE TABLE IF NOT EXISTS corpus (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS corpus_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			corpus_id INTEGER NOT NULL,
			table_name TEXT NOT NULL,
			row_id INTEGER NOT NULL,
			UNIQUE(corpus_id, table_name, row_id)
		)`,

		`CREATE TABLE IF NOT EXISTS ingest_run (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT,
			source_pdf TEXT,
			filters_json TEXT,
			started_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_raw_doi ON ` + TableRaw + `(normalized_doi)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_oaid ON ` + TableRaw + `(openalex_id)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_triple ON ` + TableRaw + `(normalized_title, normalized_authors, year)`,
		`CREATE INDEX IF NOT EXISTS idx_enriched_doi ON ` + TableEnriched + `(normalized_doi)`,
		`CREATE INDEX IF NOT EXISTS idx_enriched_oaid ON ` + TableEnriched + `(openalex_id)`,
		`CREATE INDEX IF NOT EXISTS idx_enriched_triple ON ` + TableEnriched + `(normalized_title, normalized_authors, year)`,
		`CREATE INDEX IF NOT EXISTS idx_enriched_download_state ON ` + TableEnriched + `(download_state, priority, id)`,
		`CREATE INDEX IF NOT EXISTS idx_downloaded_doi ON ` + TableDownloaded + `(normalized_doi)`,
		`CREATE INDEX IF NOT EXISTS idx_downloaded_oaid ON ` + TableDownloaded + `(openalex_id)`,
		`CREATE INDEX IF NOT EXISTS idx_downloaded_triple ON ` + TableDownloaded + `(normalized_title, normalized_authors, year)`,
		`CREATE INDEX IF NOT EXISTS idx_alias_lookup ON alias_index(alias_title_normalized, alias_year)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON citation_edges(source_openalex_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON citation_edges(target_openalex_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
