// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	pflag "github.com/spf13/pflag"

	"github.com/kraklabs/biblio/internal/contract"
	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
	"github.com/kraklabs/biblio/pkg/store"
)

// extractedEntry is one element of the external extractor's JSON array
// (§1 "any model that returns a JSON array of reference objects will do").
type extractedEntry struct {
	Title     string   `json:"title"`
	Year      *int     `json:"year"`
	DOI       string   `json:"doi"`
	EntryType string   `json:"entry_type"`
	Container string   `json:"container"`
	Publisher string   `json:"publisher"`
	URL       string   `json:"url"`
	Abstract  string   `json:"abstract"`
	Authors   []string `json:"authors"`
	Keywords  []string `json:"keywords"`
}

// runIngestPDF executes 'biblio ingest-pdf PATH': invokes the external
// bibliography extractor against a PDF and calls insert_raw per returned
// entry (§6 ingest-pdf).
func runIngestPDF(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("ingest-pdf", pflag.ExitOnError)
	corpusName := fs.String("corpus", "", "Corpus to scope inserted rows to")
	extractorCmd := fs.String("extractor-cmd", os.Getenv("BIBLIO_EXTRACTOR_CMD"), "External extractor executable; invoked as '<cmd> PATH', must print a JSON array of reference objects on stdout")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio ingest-pdf PATH [options]\n\nOptions:\n")
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

	if *extractorCmd == "" {
		fatalErr(globals, bibliErrors.NewInputError(
			"No extractor configured", "ingest-pdf requires an external extractor command",
			"Pass --extractor-cmd or set BIBLIO_EXTRACTOR_CMD",
		))
	}
	if _, err := os.Stat(path); err != nil {
		fatalErr(globals, bibliErrors.NewInputError(
			fmt.Sprintf("Cannot stat %s", path), err.Error(), "Check the path exists",
		))
	}

	cmd := exec.Command(*extractorCmd, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		fatalErr(globals, bibliErrors.NewInternalError(
			"Extractor command failed", fmt.Sprintf("%v\n%s", err, stderr.String()),
			"Check --extractor-cmd is a valid executable that accepts a PDF path argument", err,
		))
	}

	if result := contract.ValidateBatchScript(stdout.String()); !result.OK {
		fatalErr(globals, bibliErrors.NewValidationError(
			"Extractor output failed validation", result.Message,
			"Check the extractor emits a JSON array of reference objects",
		))
	}

	var entries []extractedEntry
	if err := json.Unmarshal(stdout.Bytes(), &entries); err != nil {
		fatalErr(globals, bibliErrors.NewValidationError(
			"Extractor output is not a JSON array of reference objects", err.Error(),
			"Check the extractor's stdout contract",
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

	var inserted, rejected int
	for _, entry := range entries {
		entryJSON, _ := json.Marshal(entry)
		ref := store.Reference{
			Title:           entry.Title,
			Year:            entry.Year,
			DOI:             entry.DOI,
			EntryType:       entry.EntryType,
			Container:       entry.Container,
			Publisher:       entry.Publisher,
			URL:             entry.URL,
			Abstract:        entry.Abstract,
			IngestSource:    "pdf:" + *extractorCmd,
			CorpusID:        corpusID,
			BibtexEntryJSON: string(entryJSON),
		}

		id, rej, err := s.InsertRaw(ctx, ref, entry.Authors, entry.Keywords, now)
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				fmt.Sprintf("Cannot insert entry %q", entry.Title), err.Error(),
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
		Inserted int `json:"inserted"`
		Rejected int `json:"rejected"`
		Total    int `json:"total"`
	}{inserted, rejected, len(entries)}

	if globals.JSON {
		_ = outputJSON(summary)
		return
	}
	ui.Success(fmt.Sprintf("Extracted %s entries from %s: %d inserted, %d rejected as duplicates",
		strconv.Itoa(len(entries)), path, inserted, rejected))
}
