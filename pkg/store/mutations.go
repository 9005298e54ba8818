// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kraklabs/biblio/pkg/dedup"
	"github.com/kraklabs/biblio/pkg/normalize"
)

// Rejection describes why insert_raw/promote_to_enriched/enqueue_for_download
// refused to write a row: it collided with an existing catalog entry (§4.2).
type Rejection struct {
	Table string
	ID    int64
	Field string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("duplicate of %s.id=%d matched on %s", r.Table, r.ID, r.Field)
}

// prepare fills the derived comparison-key columns (§4.1) if the caller
// hasn't already, and the authors/keywords JSON blobs from plain slices.
func prepare(ref *Reference, authors, keywords []string) {
	if ref.DOI != "" && ref.NormalizedDOI == "" {
		ref.NormalizedDOI = normalize.DOI(ref.DOI)
	}
	if ref.OpenAlexID != "" {
		ref.OpenAlexID = normalize.OpenAlexID(ref.OpenAlexID)
	}
	if ref.Title != "" && ref.NormalizedTitle == "" {
		ref.NormalizedTitle = normalize.Title(ref.Title)
	}
	if len(authors) > 0 {
		b, _ := json.Marshal(authors)
		ref.AuthorsJSON = string(b)
		if ref.NormalizedAuthors == "" {
			ref.NormalizedAuthors = normalize.Authors(authors)
		}
	} else if ref.AuthorsJSON == "" {
		ref.AuthorsJSON = "[]"
	}
	if len(keywords) > 0 {
		b, _ := json.Marshal(keywords)
		ref.KeywordsJSON = string(b)
	} else if ref.KeywordsJSON == "" {
		ref.KeywordsJSON = "[]"
	}
}

func candidateOf(ref Reference) dedup.Candidate {
	return dedup.Candidate{
		NormalizedDOI:     ref.NormalizedDOI,
		OpenAlexID:        ref.OpenAlexID,
		NormalizedTitle:   ref.NormalizedTitle,
		NormalizedAuthors: ref.NormalizedAuthors,
		Year:              ref.Year,
	}
}

func fingerprintOf(ref Reference) string {
	if ref.NormalizedDOI != "" {
		return "doi:" + ref.NormalizedDOI
	}
	if ref.OpenAlexID != "" {
		return "openalex:" + ref.OpenAlexID
	}
	return "title:" + ref.NormalizedTitle
}

var referenceInsertColumns = []string{
	"title", "year", "doi", "openalex_id", "entry_type", "container", "volume", "issue",
	"pages", "publisher", "url", "isbn", "issn", "abstract", "language",
	"authors_json", "keywords_json", "normalized_doi", "normalized_title", "normalized_authors",
	"ingest_source", "corpus_id", "bibtex_entry_json", "created_at",
}

func insertReferenceRow(ctx context.Context, tx *sqlx.Tx, table string, ref Reference, extra map[string]any) (int64, error) {
	cols := append([]string(nil), referenceInsertColumns...)
	named := map[string]any{
		"title": ref.Title, "year": ref.Year, "doi": ref.DOI, "openalex_id": ref.OpenAlexID,
		"entry_type": ref.EntryType, "container": ref.Container, "volume": ref.Volume, "issue": ref.Issue,
		"pages": ref.Pages, "publisher": ref.Publisher, "url": ref.URL, "isbn": ref.ISBN, "issn": ref.ISSN,
		"abstract": ref.Abstract, "language": ref.Language, "authors_json": ref.AuthorsJSON,
		"keywords_json": ref.KeywordsJSON, "normalized_doi": ref.NormalizedDOI, "normalized_title": ref.NormalizedTitle,
		"normalized_authors": ref.NormalizedAuthors, "ingest_source": ref.IngestSource, "corpus_id": ref.CorpusID,
		"bibtex_entry_json": ref.BibtexEntryJSON, "created_at": ref.CreatedAt,
	}
	for k, v := range extra {
		cols = append(cols, k)
		named[k] = v
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = ":" + c
		args[i] = named[c]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, joinCols(cols), joinCols(placeholders))
	res, err := tx.NamedExecContext(ctx, query, named)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// InsertRaw inserts a candidate reference into raw, resolving duplicates
// first (§4.2 insert_raw). On collision it writes a merge-log entry and
// returns the match as a Rejection without inserting.
func (s *Store) InsertRaw(ctx context.Context, ref Reference, authors, keywords []string, now time.Time) (int64, *Rejection, error) {
	prepare(&ref, authors, keywords)
	ref.CreatedAt = now.Unix()

	tx, err := s.beginTx()
	if err != nil {
		return 0, nil, fmt.Errorf("begin insert_raw: %w", err)
	}
	defer rollback(tx)

	match, err := dedup.Resolve(ctx, tx, candidateOf(ref))
	if err != nil {
		return 0, nil, fmt.Errorf("resolve: %w", err)
	}
	if match != nil {
		if err := dedup.WriteMergeLogEntry(ctx, tx, now.Unix(), fingerprintOf(ref), *match, dedup.ActionRejected); err != nil {
			return 0, nil, err
		}
		if err := tx.Commit(); err != nil {
			return 0, nil, fmt.Errorf("commit rejection: %w", err)
		}
		return 0, &Rejection{Table: match.Table, ID: match.ID, Field: match.Field}, nil
	}

	id, err := insertReferenceRow(ctx, tx, TableRaw, ref, nil)
	if err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit insert_raw: %w", err)
	}
	return id, nil, nil
}

// PromoteToEnriched deletes the raw row and inserts the enriched record
// (§4.2 promote_to_enriched), re-running the resolver first since
// enrichment may have filled in a DOI/OpenAlex id that now collides with a
// row inserted concurrently by another worker.
func (s *Store) PromoteToEnriched(ctx context.Context, rawID int64, enriched Reference, authors, keywords []string, now time.Time) (int64, *Rejection, error) {
	prepare(&enriched, authors, keywords)
	enriched.CreatedAt = now.Unix()

	tx, err := s.beginTx()
	if err != nil {
		return 0, nil, fmt.Errorf("begin promote_to_enriched: %w", err)
	}
	defer rollback(tx)

	// The raw row is removed first so the resolver below never matches the
	// row being promoted; both outcomes drop it from raw.
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+TableRaw+` WHERE id = ?`, rawID); err != nil {
		return 0, nil, fmt.Errorf("delete raw row %d: %w", rawID, err)
	}

	match, err := dedup.Resolve(ctx, tx, candidateOf(enriched))
	if err != nil {
		return 0, nil, fmt.Errorf("resolve: %w", err)
	}
	if match != nil {
		if err := dedup.WriteMergeLogEntry(ctx, tx, now.Unix(), fingerprintOf(enriched), *match, dedup.ActionRejected); err != nil {
			return 0, nil, err
		}
		if err := tx.Commit(); err != nil {
			return 0, nil, fmt.Errorf("commit rejection: %w", err)
		}
		return 0, &Rejection{Table: match.Table, ID: match.ID, Field: match.Field}, nil
	}

	id, err := insertReferenceRow(ctx, tx, TableEnriched, enriched, map[string]any{
		"download_state": DownloadStateNone,
	})
	if err != nil {
		return 0, nil, err
	}

	fingerprint := fingerprintOf(enriched)
	m := dedup.Match{Table: TableEnriched, ID: id, Field: dedup.MatchFieldDOI}
	if err := dedup.WriteMergeLogEntry(ctx, tx, now.Unix(), fingerprint, m, dedup.ActionPromoted); err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit promote_to_enriched: %w", err)
	}
	return id, nil, nil
}

// InsertEnrichedStub inserts a reference-expansion stub directly into
// enriched (title + openalex_id only), going through the resolver so a stub
// never duplicates an existing row (§4.7).
func (s *Store) InsertEnrichedStub(ctx context.Context, stub Reference, now time.Time) (int64, *Rejection, error) {
	prepare(&stub, nil, nil)
	stub.CreatedAt = now.Unix()

	tx, err := s.beginTx()
	if err != nil {
		return 0, nil, fmt.Errorf("begin insert_enriched_stub: %w", err)
	}
	defer rollback(tx)

	match, err := dedup.Resolve(ctx, tx, candidateOf(stub))
	if err != nil {
		return 0, nil, fmt.Errorf("resolve: %w", err)
	}
	if match != nil {
		if err := dedup.WriteMergeLogEntry(ctx, tx, now.Unix(), fingerprintOf(stub), *match, dedup.ActionRejected); err != nil {
			return 0, nil, err
		}
		if err := tx.Commit(); err != nil {
			return 0, nil, err
		}
		return 0, &Rejection{Table: match.Table, ID: match.ID, Field: match.Field}, nil
	}

	id, err := insertReferenceRow(ctx, tx, TableEnriched, stub, map[string]any{
		"download_state": DownloadStateNone,
	})
	if err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit insert_enriched_stub: %w", err)
	}
	return id, nil, nil
}

// FailEnrichment moves a raw row to failed_enrichment with a diagnostic
// reason (§4.2 fail_enrichment).
func (s *Store) FailEnrichment(ctx context.Context, rawID int64, reason string, now time.Time) error {
	tx, err := s.beginTx()
	if err != nil {
		return fmt.Errorf("begin fail_enrichment: %w", err)
	}
	defer rollback(tx)

	var ref Reference
	if err := tx.GetContext(ctx, &ref, `SELECT * FROM `+TableRaw+` WHERE id = ?`, rawID); err != nil {
		return fmt.Errorf("load raw row %d: %w", rawID, err)
	}

	if _, err := insertReferenceRow(ctx, tx, TableFailedEnrichment, ref, map[string]any{
		"reason": reason, "failed_at": now.Unix(),
	}); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+TableRaw+` WHERE id = ?`, rawID); err != nil {
		return fmt.Errorf("delete raw row %d: %w", rawID, err)
	}

	return tx.Commit()
}

// EnqueueForDownload sets download_state='queued' iff the row is not
// already downloaded/queued (§4.2 enqueue_for_download, §4.8). It reports a
// Rejection (not a hard error) when the row is already past 'none'.
func (s *Store) EnqueueForDownload(ctx context.Context, enrichedID int64) (*Rejection, error) {
	tx, err := s.beginTx()
	if err != nil {
		return nil, fmt.Errorf("begin enqueue_for_download: %w", err)
	}
	defer rollback(tx)

	var state string
	if err := tx.GetContext(ctx, &state, `SELECT download_state FROM `+TableEnriched+` WHERE id = ?`, enrichedID); err != nil {
		return nil, fmt.Errorf("load enriched row %d: %w", enrichedID, err)
	}
	if state != DownloadStateNone {
		return &Rejection{Table: TableEnriched, ID: enrichedID, Field: "download_state"}, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE `+TableEnriched+` SET download_state = ? WHERE id = ?`, DownloadStateQueued, enrichedID); err != nil {
		return nil, fmt.Errorf("enqueue row %d: %w", enrichedID, err)
	}
	return nil, tx.Commit()
}

// ClaimBatch leases up to limit queued rows to worker_id (§4.2 claim_batch,
// §4.8). The whole select-then-update runs in one transaction so no two
// concurrent claimants can see the same row as claimable (P8, P13).
func (s *Store) ClaimBatch(ctx context.Context, corpusID *int64, limit int, workerID string, leaseSeconds int, now time.Time) ([]EnrichedRow, error) {
	tx, err := s.beginTx()
	if err != nil {
		return nil, fmt.Errorf("begin claim_batch: %w", err)
	}
	defer rollback(tx)

	query := `SELECT id FROM ` + TableEnriched + ` WHERE download_state = ?`
	args := []any{DownloadStateQueued}
	if corpusID != nil {
		query += ` AND corpus_id = ?`
		args = append(args, *corpusID)
	}
	query += ` ORDER BY priority ASC, id ASC LIMIT ?`
	args = append(args, limit)

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("select claimable rows: %w", err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	leaseExpires := now.Add(time.Duration(leaseSeconds) * time.Second).Unix()
	q, qargs, err := sqlx.In(`UPDATE `+TableEnriched+` SET download_state = ?, download_claimed_by = ?, download_lease_expires_at = ? WHERE id IN (?)`,
		DownloadStateInProgress, workerID, leaseExpires, ids)
	if err != nil {
		return nil, fmt.Errorf("build claim update: %w", err)
	}
	q = tx.Rebind(q)
	if _, err := tx.ExecContext(ctx, q, qargs...); err != nil {
		return nil, fmt.Errorf("claim rows: %w", err)
	}

	q2, qargs2, err := sqlx.In(`SELECT * FROM `+TableEnriched+` WHERE id IN (?) ORDER BY priority ASC, id ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build claim select: %w", err)
	}
	q2 = tx.Rebind(q2)
	var rows []EnrichedRow
	if err := tx.SelectContext(ctx, &rows, q2, qargs2...); err != nil {
		return nil, fmt.Errorf("select claimed rows: %w", err)
	}

	return rows, tx.Commit()
}

// CompleteDownloadSuccess moves an enriched row to downloaded (§4.2
// complete_download_success, §4.8), clearing claim fields.
func (s *Store) CompleteDownloadSuccess(ctx context.Context, rowID int64, filePath, checksum, source string, now time.Time) error {
	tx, err := s.beginTx()
	if err != nil {
		return fmt.Errorf("begin complete_download_success: %w", err)
	}
	defer rollback(tx)

	var row EnrichedRow
	if err := tx.GetContext(ctx, &row, `SELECT * FROM `+TableEnriched+` WHERE id = ?`, rowID); err != nil {
		return fmt.Errorf("load enriched row %d: %w", rowID, err)
	}

	row.DownloadState = DownloadStateSucceeded
	row.FilePath = &filePath
	row.ChecksumPDF = &checksum
	row.DownloadSource = &source
	row.DownloadClaimedBy = nil
	row.DownloadLeaseExpiresAt = nil

	if _, err := insertReferenceRow(ctx, tx, TableDownloaded, row.Reference, map[string]any{
		"download_state": row.DownloadState, "download_attempt_count": row.DownloadAttemptCount,
		"download_claimed_by": nil, "download_lease_expires_at": nil, "status_notes": row.StatusNotes,
		"file_path": row.FilePath, "checksum_pdf": row.ChecksumPDF, "download_source": row.DownloadSource,
		"priority": row.Priority,
	}); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+TableEnriched+` WHERE id = ?`, rowID); err != nil {
		return fmt.Errorf("delete enriched row %d: %w", rowID, err)
	}

	return tx.Commit()
}

// FailDownload increments the attempt counter and either requeues the row or
// moves it to failed_download once the retry budget is exhausted (§4.2
// fail_download, §7 category 6).
func (s *Store) FailDownload(ctx context.Context, rowID int64, reason string, retryBudget int, now time.Time) error {
	tx, err := s.beginTx()
	if err != nil {
		return fmt.Errorf("begin fail_download: %w", err)
	}
	defer rollback(tx)

	var row EnrichedRow
	if err := tx.GetContext(ctx, &row, `SELECT * FROM `+TableEnriched+` WHERE id = ?`, rowID); err != nil {
		return fmt.Errorf("load enriched row %d: %w", rowID, err)
	}
	row.DownloadAttemptCount++

	if row.DownloadAttemptCount >= retryBudget {
		row.DownloadState = DownloadStateFailed
		row.StatusNotes = &reason
		if _, err := insertReferenceRow(ctx, tx, TableFailedDownload, row.Reference, map[string]any{
			"download_state": row.DownloadState, "download_attempt_count": row.DownloadAttemptCount,
			"download_claimed_by": nil, "download_lease_expires_at": nil, "status_notes": row.StatusNotes,
			"file_path": row.FilePath, "checksum_pdf": row.ChecksumPDF, "download_source": row.DownloadSource,
			"priority": row.Priority, "reason": reason, "failed_at": now.Unix(),
		}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+TableEnriched+` WHERE id = ?`, rowID); err != nil {
			return fmt.Errorf("delete enriched row %d: %w", rowID, err)
		}
		return tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `UPDATE `+TableEnriched+` SET download_state = ?, download_attempt_count = ?,
		download_claimed_by = NULL, download_lease_expires_at = NULL, status_notes = ? WHERE id = ?`,
		DownloadStateQueued, row.DownloadAttemptCount, reason, rowID)
	if err != nil {
		return fmt.Errorf("requeue row %d: %w", rowID, err)
	}
	return tx.Commit()
}

// ReleaseExpiredLeases resets every row whose lease has expired back to
// 'queued' (§4.2 release_expired_leases, §4.8, P4, P14). Idempotent.
func (s *Store) ReleaseExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE `+TableEnriched+` SET download_state = ?, download_claimed_by = NULL, download_lease_expires_at = NULL
		WHERE download_state = ? AND download_lease_expires_at < ?`,
		DownloadStateQueued, DownloadStateInProgress, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("release expired leases: %w", err)
	}
	return res.RowsAffected()
}
