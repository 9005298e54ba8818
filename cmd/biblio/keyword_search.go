// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	pflag "github.com/spf13/pflag"

	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
	"github.com/kraklabs/biblio/pkg/store"
)

// runKeywordSearch executes 'biblio keyword-search QUERY': invokes
// OpenAlex free-text search, persists a search run, and either stores the
// results as enriched stubs or enqueues them for download (§6
// keyword-search).
func runKeywordSearch(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("keyword-search", pflag.ExitOnError)
	corpusName := fs.String("corpus", "", "Corpus to scope results to")
	enqueue := fs.Bool("enqueue", false, "Enqueue matched results for download instead of only storing them")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio keyword-search QUERY [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	query := fs.Arg(0)

	cfg := loadProjectConfig(globals)
	openAlex := newOpenAlexSource(cfg)

	ctx := context.Background()
	candidates, err := openAlex.SearchFreeText(ctx, query)
	if err != nil {
		fatalErr(globals, bibliErrors.NewNetworkError(
			"OpenAlex search failed", err.Error(), "Check connectivity to OpenAlex and retry", err,
		))
	}

	s := openStore(globals)
	defer func() { _ = s.Close() }()

	now := time.Now()
	var corpusID *int64
	if *corpusName != "" {
		id, err := s.EnsureCorpus(ctx, *corpusName, now)
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				"Cannot resolve corpus", err.Error(), "Check the catalog database isn't locked by another process", err,
			))
		}
		corpusID = &id
	}

	if _, err := s.RecordIngestRun(ctx, store.IngestRun{Query: query}, now); err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot record ingest run", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}

	var stored, queued, rejected int
	for _, c := range candidates {
		stub := store.Reference{
			Title:        c.Title,
			Year:         c.Year,
			DOI:          c.DOI,
			OpenAlexID:   c.OpenAlexID,
			EntryType:    c.Type,
			Container:    c.Container,
			Abstract:     c.Abstract,
			IngestSource: "keyword-search",
			CorpusID:     corpusID,
		}

		id, rej, err := s.InsertEnrichedStub(ctx, stub, now)
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				fmt.Sprintf("Cannot insert result %q", c.Title), err.Error(),
				"Check the catalog database isn't locked by another process", err,
			))
		}
		if rej != nil {
			rejected++
			continue
		}
		stored++
		if corpusID != nil {
			if err := s.AddToCorpus(ctx, *corpusID, store.TableEnriched, id); err != nil {
				fatalErr(globals, bibliErrors.NewStoreError(
					"Cannot add row to corpus", err.Error(), "Check the catalog database isn't locked by another process", err,
				))
			}
		}
		if *enqueue {
			if _, err := s.EnqueueForDownload(ctx, id); err != nil {
				fatalErr(globals, bibliErrors.NewStoreError(
					fmt.Sprintf("Cannot enqueue result %q", c.Title), err.Error(),
					"Check the catalog database isn't locked by another process", err,
				))
			}
			queued++
		}
	}

	summary := struct {
		Found    int `json:"found"`
		Stored   int `json:"stored"`
		Rejected int `json:"rejected"`
		Queued   int `json:"queued"`
	}{len(candidates), stored, rejected, queued}

	if globals.JSON {
		_ = outputJSON(summary)
		return
	}
	ui.Success(fmt.Sprintf("%q: %d found, %d stored, %d rejected as duplicates, %d queued for download",
		query, len(candidates), stored, rejected, queued))
}
