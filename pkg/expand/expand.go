// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package expand implements the reference expander (C7): from a matched
// work, walk referenced_works and cited_by, inserting new candidates through
// the resolver and recording citation edges (§4.7).
package expand

import (
	"context"
	"fmt"
	"time"

	"github.com/kraklabs/biblio/pkg/enrich"
	"github.com/kraklabs/biblio/pkg/graph"
	"github.com/kraklabs/biblio/pkg/store"
)

// Options bounds fan-out (§4.7).
type Options struct {
	// RelatedDepth controls recursion into stubs; default 1 means the
	// seed work's direct references/citations are expanded but stubs
	// inserted by this pass are not themselves expanded.
	RelatedDepth int
	// MaxRelatedPerReference bounds how many referenced/citing works are
	// pulled in per seed work.
	MaxRelatedPerReference int
	FetchReferences        bool
	FetchCitations         bool
}

// DefaultOptions matches §4.7's stated defaults.
func DefaultOptions() Options {
	return Options{RelatedDepth: 1, MaxRelatedPerReference: 40, FetchReferences: true, FetchCitations: false}
}

// Summary reports how many stubs/edges one ExpandWork call produced.
type Summary struct {
	StubsInserted int
	StubsRejected int
	EdgesRecorded int
}

// Expander drives §4.7 against a store and an OpenAlex source.
type Expander struct {
	store    *store.Store
	openAlex *enrich.OpenAlexSource
}

// New constructs an Expander.
func New(s *store.Store, openAlex *enrich.OpenAlexSource) *Expander {
	return &Expander{store: s, openAlex: openAlex}
}

// ExpandWork walks one work's referenced_works and (optionally) cited_by
// list, inserting stubs and edges (§4.7). cancelled is polled between pages
// and between sibling works (§4.7 cancellation, §5 suspension points).
func (e *Expander) ExpandWork(ctx context.Context, sourceOpenAlexID string, referencedWorks []string, citedByAPIURL string, opts Options, cancelled func() bool) (Summary, error) {
	var summary Summary
	now := time.Now()

	if opts.RelatedDepth < 1 {
		return summary, nil
	}

	if opts.FetchReferences {
		targets := referencedWorks
		if len(targets) > opts.MaxRelatedPerReference {
			targets = targets[:opts.MaxRelatedPerReference]
		}
		for _, target := range targets {
			if cancelled != nil && cancelled() {
				return summary, nil
			}
			if err := e.insertStubAndEdge(ctx, sourceOpenAlexID, target, graph.RelationReferences, now, &summary); err != nil {
				return summary, err
			}
		}
	}

	if opts.FetchCitations && citedByAPIURL != "" {
		collected := 0
		page := 1
		for collected < opts.MaxRelatedPerReference {
			if cancelled != nil && cancelled() {
				return summary, nil
			}

			ids, hasMore, err := e.openAlex.CitedByPage(ctx, citedByAPIURL, page)
			if err != nil {
				return summary, fmt.Errorf("fetch cited-by page %d: %w", page, err)
			}
			for _, id := range ids {
				if collected >= opts.MaxRelatedPerReference {
					break
				}
				if cancelled != nil && cancelled() {
					return summary, nil
				}
				if err := e.insertStubAndEdge(ctx, sourceOpenAlexID, id, graph.RelationCitedBy, now, &summary); err != nil {
					return summary, err
				}
				collected++
			}
			if !hasMore || len(ids) == 0 {
				break
			}
			page++
		}
	}

	return summary, nil
}

func (e *Expander) insertStubAndEdge(ctx context.Context, sourceOpenAlexID, targetOpenAlexID, relationship string, now time.Time, summary *Summary) error {
	if targetOpenAlexID == "" || targetOpenAlexID == sourceOpenAlexID {
		return nil
	}

	stub := store.Reference{Title: targetOpenAlexID, OpenAlexID: targetOpenAlexID}
	_, rej, err := e.store.InsertEnrichedStub(ctx, stub, now)
	if err != nil {
		return fmt.Errorf("insert stub for %s: %w", targetOpenAlexID, err)
	}
	if rej != nil {
		summary.StubsRejected++
	} else {
		summary.StubsInserted++
	}

	n, err := graph.RecordEdges(ctx, e.store.DB(), sourceOpenAlexID, []string{targetOpenAlexID}, relationship)
	if err != nil {
		return fmt.Errorf("record edge %s->%s: %w", sourceOpenAlexID, targetOpenAlexID, err)
	}
	summary.EdgesRecorded += n

	return nil
}
