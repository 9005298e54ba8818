// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	pflag "github.com/spf13/pflag"

	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
	"github.com/kraklabs/biblio/pkg/enrich"
	"github.com/kraklabs/biblio/pkg/expand"
	"github.com/kraklabs/biblio/pkg/orchestrator"
)

// runEnrichBatch executes 'biblio enrich-batch': drains raw, matching
// each against OpenAlex/Crossref and optionally expanding references and
// citations for promoted rows (§6 enrich-batch).
func runEnrichBatch(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("enrich-batch", pflag.ExitOnError)
	limit := fs.Int("limit", orchestrator.DefaultEnrichBatchSize, "Maximum raw rows to process")
	fetchReferences := fs.Bool("fetch-references", false, "Expand newly promoted rows' references (C7)")
	fetchCitations := fs.Bool("fetch-citations", false, "Expand newly promoted rows' citations (C7)")
	expandDepth := fs.Int("expand-depth", 0, "Override the default related-work expansion depth")
	corpusName := fs.String("corpus", "", "Restrict to rows belonging to this corpus")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio enrich-batch [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadProjectConfig(globals)
	openAlex := newOpenAlexSource(cfg)
	crossref := newCrossrefSource(cfg)
	matcher := enrich.NewMatcher(openAlex, crossref)

	s := openStore(globals)
	defer func() { _ = s.Close() }()
	expander := expand.New(s, openAlex)

	orch := orchestrator.New(orchestrator.Config{Store: s, Matcher: matcher, Expander: expander})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var corpusID *int64
	if *corpusName != "" {
		id, err := s.EnsureCorpus(ctx, *corpusName, time.Now())
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				"Cannot resolve corpus",
				err.Error(), "Check the catalog database isn't locked by another process", err,
			))
		}
		corpusID = &id
	}

	spinner := NewSpinner(NewProgressConfig(globals), "enriching")
	cancel := func() bool { return ctx.Err() != nil }

	summary, err := orch.EnrichBatch(ctx, orchestrator.EnrichBatchOptions{
		Limit:           *limit,
		CorpusID:        corpusID,
		FetchReferences: *fetchReferences,
		FetchCitations:  *fetchCitations,
		ExpandDepth:     *expandDepth,
	}, cancel)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		fatalErr(globals, bibliErrors.NewNetworkError(
			"enrich-batch failed",
			err.Error(),
			"Check connectivity to OpenAlex/Crossref and retry; already-promoted rows are not reprocessed",
			err,
		))
	}

	if globals.JSON {
		_ = outputJSON(summary)
		return
	}
	ui.Success(fmt.Sprintf(
		"Processed %d: %d promoted, %d duplicates, %d failed match (%d reference stubs, %d citation edges)",
		summary.Processed, summary.Promoted, summary.Duplicate, summary.FailedMatch,
		summary.StubsInserted, summary.EdgesRecorded,
	))
}
