// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testing

import (
	"context"
	"testing"
	"time"

	"github.com/kraklabs/biblio/pkg/store"
)

// SetupTestStore creates an in-memory catalog store for testing. The store
// is automatically closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    s := testing.SetupTestStore(t)
//	    testing.InsertRawFixture(t, s, "A Treatise on Money")
//	    // Run your tests...
//	}
func SetupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })
	return s
}

// FixtureOptions overrides a reference fixture's defaults. Zero-value
// fields mean "use the default".
type FixtureOptions struct {
	DOI        string
	OpenAlexID string
	Year       *int
	Authors    []string
	Keywords   []string
	CorpusID   *int64
}

// InsertRawFixture inserts a raw reference for testing, failing the test on
// any rejection or error (callers that want to exercise rejection paths
// should call store.InsertRaw directly).
func InsertRawFixture(t *testing.T, s *store.Store, title string, opts ...FixtureOptions) int64 {
	t.Helper()

	ref := store.Reference{Title: title}
	var authors, keywords []string
	if len(opts) > 0 {
		o := opts[0]
		ref.DOI = o.DOI
		ref.OpenAlexID = o.OpenAlexID
		ref.Year = o.Year
		ref.CorpusID = o.CorpusID
		authors = o.Authors
		keywords = o.Keywords
	}

	id, rej, err := s.InsertRaw(context.Background(), ref, authors, keywords, time.Now())
	if err != nil {
		t.Fatalf("insert raw fixture %q: %v", title, err)
	}
	if rej != nil {
		t.Fatalf("insert raw fixture %q: unexpectedly rejected: %v", title, rej)
	}
	return id
}

// InsertEnrichedFixture promotes a fresh raw row straight to enriched, for
// tests that need a populated enriched_references table without exercising
// the matcher.
func InsertEnrichedFixture(t *testing.T, s *store.Store, title, openAlexID string, opts ...FixtureOptions) int64 {
	t.Helper()

	rawID := InsertRawFixture(t, s, title+" (raw)", opts...)

	ref := store.Reference{Title: title, OpenAlexID: openAlexID}
	var authors, keywords []string
	if len(opts) > 0 {
		o := opts[0]
		ref.DOI = o.DOI
		ref.Year = o.Year
		ref.CorpusID = o.CorpusID
		authors = o.Authors
		keywords = o.Keywords
	}

	id, rej, err := s.PromoteToEnriched(context.Background(), rawID, ref, authors, keywords, time.Now())
	if err != nil {
		t.Fatalf("insert enriched fixture %q: %v", title, err)
	}
	if rej != nil {
		t.Fatalf("insert enriched fixture %q: unexpectedly rejected: %v", title, rej)
	}
	return id
}

// EnqueueFixture enqueues an already-enriched row for download, failing the
// test on rejection.
func EnqueueFixture(t *testing.T, s *store.Store, enrichedID int64) {
	t.Helper()

	rej, err := s.EnqueueForDownload(context.Background(), enrichedID)
	if err != nil {
		t.Fatalf("enqueue fixture %d: %v", enrichedID, err)
	}
	if rej != nil {
		t.Fatalf("enqueue fixture %d: unexpectedly rejected: %v", enrichedID, rej)
	}
}

// CountRows is a helper for asserting the population of a stage table by
// name (one of store.TableRaw, store.TableEnriched, store.TableDownloaded,
// store.TableFailedEnrichment, store.TableFailedDownload).
func CountRows(t *testing.T, s *store.Store, table string) int {
	t.Helper()

	var count int
	if err := s.DB().Get(&count, `SELECT COUNT(*) FROM `+table); err != nil {
		t.Fatalf("count rows in %s: %v", table, err)
	}
	return count
}
