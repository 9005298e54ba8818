// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

// Reference is the common row shape shared by every stage table (§3). Each
// stage table is a physically distinct SQL table with this same column set
// plus stage-specific extensions (see EnrichedRow).
type Reference struct {
	ID     int64  `db:"id"`
	Title  string `db:"title"`
	Year   *int   `db:"year"`
	DOI    string `db:"doi"`
	OpenAlexID string `db:"openalex_id"`
	EntryType  string `db:"entry_type"`
	Container  string `db:"container"` // source/journal name
	Volume     string `db:"volume"`
	Issue      string `db:"issue"`
	Pages      string `db:"pages"`
	Publisher  string `db:"publisher"`
	URL        string `db:"url"`
	ISBN       string `db:"isbn"`
	ISSN       string `db:"issn"`
	Abstract   string `db:"abstract"`
	Language   string `db:"language"`

	AuthorsJSON  string `db:"authors_json"`  // JSON array of display-name strings, ordered
	KeywordsJSON string `db:"keywords_json"` // JSON array of strings

	NormalizedDOI     string `db:"normalized_doi"`
	NormalizedTitle   string `db:"normalized_title"`
	NormalizedAuthors string `db:"normalized_authors"`

	IngestSource    string `db:"ingest_source"`
	CorpusID        *int64 `db:"corpus_id"`
	BibtexEntryJSON string `db:"bibtex_entry_json"`

	CreatedAt int64 `db:"created_at"`
}

// EnrichedRow is the enriched/downloaded stage shape: Reference plus the
// download-control columns from §3.
type EnrichedRow struct {
	Reference

	DownloadState          string  `db:"download_state"` // none, queued, in_progress, failed, succeeded
	DownloadAttemptCount   int     `db:"download_attempt_count"`
	DownloadClaimedBy      *string `db:"download_claimed_by"`
	DownloadLeaseExpiresAt *int64  `db:"download_lease_expires_at"`
	StatusNotes            *string `db:"status_notes"`
	FilePath               *string `db:"file_path"`
	ChecksumPDF            *string `db:"checksum_pdf"`
	DownloadSource         *string `db:"download_source"`
	Priority               int     `db:"priority"`

	// SourceWorkOpenAlexID and PendingEdgeRelationship record a
	// not-yet-materialized citation relationship for rows imported with
	// edge metadata attached but no corresponding citation_edges row (e.g.
	// a merged-in corpus). backfill-edges (pkg/graph) reads these to
	// materialize the missing edges; C7's own expansion path records edges
	// directly and leaves these columns empty. The claim, notes and
	// download-outcome columns above are nullable at the SQL level (never
	// populated until a row is claimed or completes a download attempt),
	// hence the pointer types; download_state, download_attempt_count and
	// priority are NOT NULL with defaults.
	SourceWorkOpenAlexID    *string `db:"source_work_openalex_id"`
	PendingEdgeRelationship *string `db:"pending_edge_relationship"`
}

// Download state values (§3, §4.2, §4.8).
const (
	DownloadStateNone       = "none"
	DownloadStateQueued     = "queued"
	DownloadStateInProgress = "in_progress"
	DownloadStateFailed     = "failed"
	DownloadStateSucceeded  = "succeeded"
)

// Stage table names. These are part of the external contract (§6): table
// names and semantic columns must be preserved across migrations.
const (
	TableRaw               = "raw_references"
	TableEnriched          = "enriched_references"
	TableDownloaded        = "downloaded_references"
	TableFailedEnrichment  = "failed_enrichment_references"
	TableFailedDownload    = "failed_download_references"
)

// Merge-log matched-field and action values are defined in pkg/dedup, which
// owns the resolution logic that produces them; store only persists what
// dedup decides.
