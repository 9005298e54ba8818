// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

import (
	"context"
	"fmt"
)

// ListRawBatch returns up to limit raw rows, oldest first, optionally
// scoped to a corpus. It does not mutate state; callers that intend to
// promote or fail a row still go through PromoteToEnriched/FailEnrichment,
// which re-resolve duplicates inside their own transaction (§4.2).
func (s *Store) ListRawBatch(ctx context.Context, corpusID *int64, limit int) ([]Reference, error) {
	query := `SELECT * FROM ` + TableRaw + ` WHERE 1=1`
	var args []any
	if corpusID != nil {
		query += ` AND corpus_id = ?`
		args = append(args, *corpusID)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	var rows []Reference
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list raw batch: %w", err)
	}
	return rows, nil
}

// GetEnriched fetches a single enriched row by id.
func (s *Store) GetEnriched(ctx context.Context, id int64) (*EnrichedRow, error) {
	var row EnrichedRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM `+TableEnriched+` WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get enriched row %d: %w", id, err)
	}
	return &row, nil
}

// CountByState reports how many rows sit in each terminal/queue bucket,
// for status reporting.
type CountByState struct {
	Raw              int64
	Enriched         int64
	Queued           int64
	InProgress       int64
	Downloaded       int64
	FailedEnrichment int64
	FailedDownload   int64
}

// Counts reports the current population of every stage table (§6 status).
func (s *Store) Counts(ctx context.Context) (CountByState, error) {
	var c CountByState
	if err := s.db.GetContext(ctx, &c.Raw, `SELECT COUNT(*) FROM `+TableRaw); err != nil {
		return c, fmt.Errorf("count raw: %w", err)
	}
	if err := s.db.GetContext(ctx, &c.Enriched, `SELECT COUNT(*) FROM `+TableEnriched+` WHERE download_state = ?`, DownloadStateNone); err != nil {
		return c, fmt.Errorf("count enriched: %w", err)
	}
	if err := s.db.GetContext(ctx, &c.Queued, `SELECT COUNT(*) FROM `+TableEnriched+` WHERE download_state = ?`, DownloadStateQueued); err != nil {
		return c, fmt.Errorf("count queued: %w", err)
	}
	if err := s.db.GetContext(ctx, &c.InProgress, `SELECT COUNT(*) FROM `+TableEnriched+` WHERE download_state = ?`, DownloadStateInProgress); err != nil {
		return c, fmt.Errorf("count in_progress: %w", err)
	}
	if err := s.db.GetContext(ctx, &c.Downloaded, `SELECT COUNT(*) FROM `+TableDownloaded); err != nil {
		return c, fmt.Errorf("count downloaded: %w", err)
	}
	if err := s.db.GetContext(ctx, &c.FailedEnrichment, `SELECT COUNT(*) FROM `+TableFailedEnrichment); err != nil {
		return c, fmt.Errorf("count failed_enrichment: %w", err)
	}
	if err := s.db.GetContext(ctx, &c.FailedDownload, `SELECT COUNT(*) FROM `+TableFailedDownload); err != nil {
		return c, fmt.Errorf("count failed_download: %w", err)
	}
	return c, nil
}
