// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package queue implements the download queue's worker-facing half (C8):
// claiming a lease-bounded batch of work, completing or failing individual
// items, and periodically sweeping expired leases back to queued (§4.8).
// The claim/lease/sweep protocol itself lives in pkg/store (the owner of
// the transactional guarantees); this package adds worker identity and the
// periodic sweep loop on top of it.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/biblio/pkg/store"
)

// DefaultLeaseSeconds is how long a claimed batch is held before its lease
// is considered expired and eligible for release (§4.8).
const DefaultLeaseSeconds = 900

// Worker claims and completes download batches under a stable identity.
// The identity is used for DownloadClaimedBy so a stale lease can be traced
// back to the worker that held it.
type Worker struct {
	id           string
	store        *store.Store
	leaseSeconds int
	retryBudget  int
}

// Config configures a Worker.
type Config struct {
	// ID identifies this worker in claimed rows. A random uuid is used if
	// empty.
	ID string
	// LeaseSeconds bounds how long a claimed batch is held before it's
	// eligible for release. Defaults to DefaultLeaseSeconds.
	LeaseSeconds int
	// RetryBudget is the number of download attempts allowed before a row
	// moves to the failed-download bucket (§4.2 fail_download, §7).
	RetryBudget int
}

// NewWorker constructs a Worker bound to a store.
func NewWorker(s *store.Store, cfg Config) *Worker {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	leaseSeconds := cfg.LeaseSeconds
	if leaseSeconds <= 0 {
		leaseSeconds = DefaultLeaseSeconds
	}
	retryBudget := cfg.RetryBudget
	if retryBudget <= 0 {
		retryBudget = 3
	}
	return &Worker{id: id, store: s, leaseSeconds: leaseSeconds, retryBudget: retryBudget}
}

// ID returns the worker's identity string.
func (w *Worker) ID() string { return w.id }

// Claim leases up to limit queued rows for this worker (§4.8 claim_batch).
func (w *Worker) Claim(ctx context.Context, corpusID *int64, limit int) ([]store.EnrichedRow, error) {
	rows, err := w.store.ClaimBatch(ctx, corpusID, limit, w.id, w.leaseSeconds, time.Now())
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	return rows, nil
}

// CompleteSuccess records a successful download (§4.2 complete_download_success).
func (w *Worker) CompleteSuccess(ctx context.Context, rowID int64, filePath, checksum, source string) error {
	return w.store.CompleteDownloadSuccess(ctx, rowID, filePath, checksum, source, time.Now())
}

// Fail records a failed download attempt, requeuing until the retry budget
// is exhausted and then moving the row to the failed-download bucket
// (§4.2 fail_download, §7).
func (w *Worker) Fail(ctx context.Context, rowID int64, reason string) error {
	return w.store.FailDownload(ctx, rowID, reason, w.retryBudget, time.Now())
}

// Sweeper periodically releases expired leases so abandoned claims don't
// starve the queue (§4.8 release_expired_leases).
type Sweeper struct {
	store    *store.Store
	interval time.Duration
}

// NewSweeper constructs a Sweeper that checks for expired leases every
// interval.
func NewSweeper(s *store.Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: s, interval: interval}
}

// Run blocks, releasing expired leases on each tick, until ctx is
// cancelled.
func (sw *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := sw.store.ReleaseExpiredLeases(ctx, time.Now()); err != nil {
				return fmt.Errorf("release expired leases: %w", err)
			}
		}
	}
}

// ReleaseOnce runs a single lease-release sweep, for callers driving their
// own schedule (e.g. a CLI maintenance command) rather than Run's ticker.
func (sw *Sweeper) ReleaseOnce(ctx context.Context) (int64, error) {
	n, err := sw.store.ReleaseExpiredLeases(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("release expired leases: %w", err)
	}
	return n, nil
}
