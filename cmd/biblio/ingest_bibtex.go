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

	"github.com/kraklabs/biblio/internal/bibtex"
	"github.com/kraklabs/biblio/internal/contract"
	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
	"github.com/kraklabs/biblio/pkg/store"
)

// runIngestBibtex executes 'biblio ingest-bibtex PATH': parses a .bib file
// and calls insert_raw per entry (§6 ingest-bibtex).
func runIngestBibtex(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("ingest-bibtex", pflag.ExitOnError)
	corpusName := fs.String("corpus", "", "Corpus to scope inserted rows to")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio ingest-bibtex PATH [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

	raw, err := os.ReadFile(path)
	if err != nil {
		fatalErr(globals, bibliErrors.NewInputError(
			fmt.Sprintf("Cannot read %s", path), err.Error(), "Check the path exists and is readable",
		))
	}
	if result := contract.ValidateBatchScript(string(raw)); !result.OK {
		fatalErr(globals, bibliErrors.NewValidationError(
			"BibTeX file failed validation", result.Message, "Fix the offending entries and retry",
		))
	}

	entries, err := bibtex.Parse(string(raw))
	if err != nil {
		fatalErr(globals, bibliErrors.NewValidationError(
			"Cannot parse BibTeX", err.Error(), "Check the file is well-formed BibTeX",
		))
	}

	s := openStore(globals)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
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

	if _, err := s.RecordIngestRun(ctx, store.IngestRun{SourcePDF: path}, now); err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot record ingest run", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}

	var inserted, rejected, malformed int
	for _, entry := range entries {
		fields, err := entry.ToFields()
		if err != nil {
			malformed++
			continue
		}

		ref := store.Reference{
			Title:           fields.Title,
			Year:            fields.Year,
			DOI:             fields.DOI,
			EntryType:       fields.EntryType,
			Container:       fields.Container,
			Volume:          fields.Volume,
			Issue:           fields.Issue,
			Pages:           fields.Pages,
			Publisher:       fields.Publisher,
			URL:             fields.URL,
			ISBN:            fields.ISBN,
			ISSN:            fields.ISSN,
			Abstract:        fields.Abstract,
			IngestSource:    "bibtex",
			CorpusID:        corpusID,
			BibtexEntryJSON: fields.EntryJSON,
		}

		id, rej, err := s.InsertRaw(ctx, ref, fields.Authors, fields.Keywords, now)
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				fmt.Sprintf("Cannot insert entry %q", entry.Key), err.Error(),
				"Check the catalog database isn't locked by another process", err,
			))
		}
		if rej != nil {
			rejected++
			continue
		}
		inserted++
		if corpusID != nil {
			if err := s.AddToCorpus(ctx, *corpusID, store.TableRaw, id); err != nil {
				fatalErr(globals, bibliErrors.NewStoreError(
					"Cannot add row to corpus", err.Error(), "Check the catalog database isn't locked by another process", err,
				))
			}
		}
	}

	summary := struct {
		Inserted  int `json:"inserted"`
		Rejected  int `json:"rejected"`
		Malformed int `json:"malformed"`
	}{inserted, rejected, malformed}

	if globals.JSON {
		_ = outputJSON(summary)
		return
	}
	ui.Success(fmt.Sprintf("Ingested %s: %d inserted, %d rejected as duplicates, %d malformed entries skipped",
		path, inserted, rejected, malformed))
}
