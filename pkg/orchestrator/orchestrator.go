// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package orchestrator implements the orchestrator (C10): it drives stage
// transitions across the catalog, presenting batch operations that wrap the
// components' public methods — enrich-batch, claim-batch, complete-download,
// expand — with progress reporting and coordinated, cancellation-aware
// shutdown (§4.10, §5). It is a coordinator, not a mandatory mediator:
// nothing here holds state a caller couldn't reconstruct by calling the
// underlying store/enrich/expand/queue methods directly.
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/biblio/pkg/enrich"
	"github.com/kraklabs/biblio/pkg/expand"
	"github.com/kraklabs/biblio/pkg/queue"
	"github.com/kraklabs/biblio/pkg/store"
)

// Default batch sizes (§5 "Backpressure").
const (
	DefaultEnrichBatchSize   = 10
	DefaultDownloadBatchSize = 8
	defaultEnrichConcurrency = 4
)

// Config wires an Orchestrator's collaborators.
type Config struct {
	Store    *store.Store
	Matcher  *enrich.Matcher
	Expander *expand.Expander
	Worker   *queue.Worker
}

// Orchestrator drives §4.10's state machine across the wired collaborators.
type Orchestrator struct {
	store    *store.Store
	matcher  *enrich.Matcher
	expander *expand.Expander
	worker   *queue.Worker
}

// New constructs an Orchestrator.
func New(cfg Config) *Orchestrator {
	orchMetrics.init()
	return &Orchestrator{store: cfg.Store, matcher: cfg.Matcher, expander: cfg.Expander, worker: cfg.Worker}
}

// CancelFunc reports whether the caller should stop iterating (§5
// cancellation). A nil CancelFunc is treated as "never cancelled".
type CancelFunc func() bool

func cancelled(f CancelFunc) bool { return f != nil && f() }

// EnrichBatchOptions configures one enrich-batch call (§6 command surface).
type EnrichBatchOptions struct {
	Limit           int
	CorpusID        *int64
	FetchReferences bool
	FetchCitations  bool
	ExpandDepth     int
	MaxRelated      int
	Concurrency     int
}

// EnrichBatchSummary reports what one enrich-batch call did, matching the
// processed/promoted/duplicates/failed surface §7 asks batch operations to
// expose.
type EnrichBatchSummary struct {
	Processed     int
	Promoted      int
	Duplicate     int
	FailedMatch   int
	StubsInserted int
	EdgesRecorded int
}

func (s *EnrichBatchSummary) merge(o EnrichBatchSummary) {
	s.Processed += o.Processed
	s.Promoted += o.Promoted
	s.Duplicate += o.Duplicate
	s.FailedMatch += o.FailedMatch
	s.StubsInserted += o.StubsInserted
	s.EdgesRecorded += o.EdgesRecorded
}

// EnrichBatch drains up to Limit raw references, matching each against
// OpenAlex/Crossref and promoting, rejecting, or failing it, then
// optionally expanding references/citations for newly promoted rows
// (§4.10 "enrich-batch drains raw"). Rows within the batch are processed
// concurrently, bounded by Concurrency, since each row's promotion runs in
// its own store transaction (§4.2) and matching is itself the slow,
// network-bound step.
func (o *Orchestrator) EnrichBatch(ctx context.Context, opts EnrichBatchOptions, cancel CancelFunc) (EnrichBatchSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultEnrichBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultEnrichConcurrency
	}

	rows, err := o.store.ListRawBatch(ctx, opts.CorpusID, limit)
	if err != nil {
		return EnrichBatchSummary{}, fmt.Errorf("list raw batch: %w", err)
	}

	var (
		mu      sync.Mutex
		summary EnrichBatchSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, raw := range rows {
		raw := raw
		if cancelled(cancel) {
			break
		}
		g.Go(func() error {
			if cancelled(cancel) {
				return nil
			}
			result, err := o.enrichOne(gctx, raw, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			summary.merge(result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (o *Orchestrator) enrichOne(ctx context.Context, raw store.Reference, opts EnrichBatchOptions) (EnrichBatchSummary, error) {
	summary := EnrichBatchSummary{Processed: 1}
	orchMetrics.enrichProcessed.Inc()

	query := enrich.Query{Title: raw.Title, Container: raw.Container, Year: raw.Year}
	if raw.AuthorsJSON != "" {
		_ = json.Unmarshal([]byte(raw.AuthorsJSON), &query.Authors)
	}

	candidate, err := o.matcher.Match(ctx, query)
	if err != nil {
		return summary, fmt.Errorf("match raw row %d: %w", raw.ID, err)
	}

	now := time.Now()
	if candidate == nil {
		if err := o.store.FailEnrichment(ctx, raw.ID, "no enrichment match", now); err != nil {
			return summary, fmt.Errorf("fail_enrichment raw row %d: %w", raw.ID, err)
		}
		summary.FailedMatch = 1
		orchMetrics.enrichFailed.Inc()
		return summary, nil
	}

	enriched := candidateToReference(raw, *candidate)
	_, rej, err := o.store.PromoteToEnriched(ctx, raw.ID, enriched, candidate.Authors, candidate.Keywords, now)
	if err != nil {
		return summary, fmt.Errorf("promote_to_enriched raw row %d: %w", raw.ID, err)
	}
	if rej != nil {
		summary.Duplicate = 1
		orchMetrics.enrichDuplicate.Inc()
		return summary, nil
	}
	summary.Promoted = 1
	orchMetrics.enrichPromoted.Inc()

	if (opts.FetchReferences || opts.FetchCitations) && o.expander != nil {
		expandOpts := expand.DefaultOptions()
		expandOpts.FetchReferences = opts.FetchReferences
		expandOpts.FetchCitations = opts.FetchCitations
		if opts.ExpandDepth > 0 {
			expandOpts.RelatedDepth = opts.ExpandDepth
		}
		if opts.MaxRelated > 0 {
			expandOpts.MaxRelatedPerReference = opts.MaxRelated
		}

		expandSummary, err := o.expander.ExpandWork(ctx, candidate.OpenAlexID, candidate.ReferencedWorks, candidate.CitedByAPIURL, expandOpts, nil)
		if err != nil {
			return summary, fmt.Errorf("expand row %d: %w", raw.ID, err)
		}
		summary.StubsInserted = expandSummary.StubsInserted
		summary.EdgesRecorded = expandSummary.EdgesRecorded
		orchMetrics.expandStubsInserted.Add(float64(expandSummary.StubsInserted))
		orchMetrics.expandStubsRejected.Add(float64(expandSummary.StubsRejected))
		orchMetrics.expandEdgesRecorded.Add(float64(expandSummary.EdgesRecorded))
	}

	return summary, nil
}

func candidateToReference(raw store.Reference, c enrich.Candidate) store.Reference {
	ref := raw
	ref.ID = 0
	ref.NormalizedDOI = ""
	ref.NormalizedTitle = ""
	ref.NormalizedAuthors = ""
	if c.Title != "" {
		ref.Title = c.Title
	}
	ref.DOI = c.DOI
	ref.OpenAlexID = c.OpenAlexID
	ref.EntryType = c.Type
	if c.Container != "" {
		ref.Container = c.Container
	}
	if c.Year != nil {
		ref.Year = c.Year
	}
	if c.Abstract != "" {
		ref.Abstract = c.Abstract
	}
	ref.AuthorsJSON = ""
	ref.KeywordsJSON = ""
	return ref
}

// ClaimBatchOptions configures a claim-batch call (§4.10, §4.8).
type ClaimBatchOptions struct {
	Limit    int
	CorpusID *int64
}

// ClaimBatch leases up to Limit queued rows for this orchestrator's bound
// worker (§4.8 claim_batch).
func (o *Orchestrator) ClaimBatch(ctx context.Context, opts ClaimBatchOptions) ([]store.EnrichedRow, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultDownloadBatchSize
	}
	return o.worker.Claim(ctx, opts.CorpusID, limit)
}

// CompleteDownload records a download attempt's outcome: success moves the
// row to downloaded; failure requeues until the retry budget is exhausted,
// then moves it to failed_download (§4.2 complete_download_success,
// fail_download).
func (o *Orchestrator) CompleteDownload(ctx context.Context, rowID int64, filePath, checksum, source string, downloadErr error) error {
	if downloadErr == nil {
		if err := o.worker.CompleteSuccess(ctx, rowID, filePath, checksum, source); err != nil {
			return err
		}
		orchMetrics.downloadSucceeded.Inc()
		return nil
	}

	if err := o.worker.Fail(ctx, rowID, downloadErr.Error()); err != nil {
		return err
	}

	_, err := o.store.GetEnriched(ctx, rowID)
	switch {
	case err == nil:
		orchMetrics.downloadRequeued.Inc()
	case errors.Is(err, sql.ErrNoRows):
		orchMetrics.downloadFailed.Inc()
	default:
		return fmt.Errorf("check row %d after fail_download: %w", rowID, err)
	}
	return nil
}

// Expand runs C7's reference expansion for one already-enriched work
// (§4.10 "expand").
func (o *Orchestrator) Expand(ctx context.Context, sourceOpenAlexID string, referencedWorks []string, citedByAPIURL string, opts expand.Options, cancel CancelFunc) (expand.Summary, error) {
	var cancelledFn func() bool
	if cancel != nil {
		cancelledFn = func() bool { return cancel() }
	}
	summary, err := o.expander.ExpandWork(ctx, sourceOpenAlexID, referencedWorks, citedByAPIURL, opts, cancelledFn)
	if err != nil {
		return summary, err
	}
	orchMetrics.expandStubsInserted.Add(float64(summary.StubsInserted))
	orchMetrics.expandStubsRejected.Add(float64(summary.StubsRejected))
	orchMetrics.expandEdgesRecorded.Add(float64(summary.EdgesRecorded))
	return summary, nil
}

// Counts reports the current population of every stage table (§6 status
// surface).
func (o *Orchestrator) Counts(ctx context.Context) (store.CountByState, error) {
	return o.store.Counts(ctx)
}
