// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os"

	pflag "github.com/spf13/pflag"

	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
)

// runStatus executes 'biblio status': prints per-stage row counts (§4.10
// Counts).
func runStatus(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("status", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio status [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	s := openStore(globals)
	defer func() { _ = s.Close() }()

	counts, err := s.Counts(context.Background())
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot read project status", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}

	if globals.JSON {
		_ = outputJSON(counts)
		return
	}

	ui.Header(fmt.Sprintf("Project: %s", projectID(globals)))
	fmt.Printf("%s %s\n", ui.Label("Raw:"), ui.CountText(int(counts.Raw)))
	fmt.Printf("%s %s\n", ui.Label("Enriched (unqueued):"), ui.CountText(int(counts.Enriched)))
	fmt.Printf("%s %s\n", ui.Label("Queued:"), ui.CountText(int(counts.Queued)))
	fmt.Printf("%s %s\n", ui.Label("In progress:"), ui.CountText(int(counts.InProgress)))
	fmt.Printf("%s %s\n", ui.Label("Downloaded:"), ui.CountText(int(counts.Downloaded)))
	fmt.Printf("%s %s\n", ui.Label("Failed enrichment:"), ui.CountText(int(counts.FailedEnrichment)))
	fmt.Printf("%s %s\n", ui.Label("Failed download:"), ui.CountText(int(counts.FailedDownload)))
}
