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
	"github.com/kraklabs/biblio/pkg/store"

	"github.com/kraklabs/biblio/pkg/graph"
)

// runBackfillEdges executes 'biblio backfill-edges': a maintenance pass
// that materializes citation_edges for rows carrying a pending edge marker
// but no corresponding edge row yet (§6 backfill-edges, §4.9 "Backfill
// operation").
func runBackfillEdges(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("backfill-edges", pflag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum pending rows to scan per table (0 = unlimited)")
	dryRun := fs.Bool("dry-run", false, "Report what would change without writing")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio backfill-edges [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	s := openStore(globals)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	tables := []string{store.TableEnriched, store.TableDownloaded}
	summary, err := graph.BackfillEdges(ctx, s.DB(), tables, *limit, *dryRun)
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot backfill citation edges", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}

	if globals.JSON {
		_ = outputJSON(summary)
		return
	}
	verb := "Backfilled"
	if *dryRun {
		verb = "Would backfill"
	}
	ui.Success(fmt.Sprintf("%s: %d rows seen, %d edges inserted, %d skipped",
		verb, summary.RowsSeen, summary.EdgesInserted, summary.EdgesSkipped))
}
