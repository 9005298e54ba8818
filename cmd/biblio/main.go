// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package main implements the biblio CLI for acquiring, enriching, and
// exporting a bibliographic catalog.
//
// Usage:
//
//	biblio init                               Create .biblio/project.yaml
//	biblio ingest-pdf <file.pdf>               Run the extractor on a PDF and ingest its output
//	biblio ingest-bibtex <file.bib>            Ingest a BibTeX file
//	biblio keyword-search <query>              Search OpenAlex by free text
//	biblio enrich-batch                        Enrich a batch of raw rows
//	biblio download-batch                      Claim, fetch and complete downloads
//	biblio export --format=json                Export the catalog
//	biblio graph-export                        Export a citation-graph slice
//	biblio backfill-edges                      Materialize pending citation edges
//	biblio status [--json]                     Show project status
//	biblio reset                               Reset local project data
package main

import (
	"fmt"
	"os"

	pflag "github.com/spf13/pflag"

	"github.com/kraklabs/biblio/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are flags accepted before the subcommand name, shared by
// every command.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
	Project string
	DataDir string
}

func main() {
	fs := pflag.NewFlagSet("biblio", pflag.ExitOnError)

	var globals GlobalFlags
	var showVersion bool
	fs.BoolVar(&showVersion, "version", false, "Show version and exit")
	fs.BoolVar(&globals.JSON, "json", false, "Output as JSON")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	fs.CountVarP(&globals.Verbose, "verbose", "v", "Increase log verbosity")
	fs.StringVar(&globals.Project, "project", "", "Project id (default: current directory name)")
	fs.StringVar(&globals.DataDir, "data-dir", "", "Override the project data directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `biblio - bibliographic acquisition pipeline CLI

Usage:
  biblio <command> [options]

Commands:
  init             Create .biblio/project.yaml configuration
  ingest-pdf       Run the external extractor on a PDF and ingest its output
  ingest-bibtex    Ingest a BibTeX file
  keyword-search   Search OpenAlex by free-text query
  enrich-batch     Enrich a batch of raw references
  download-batch   Claim, fetch and complete a batch of downloads
  export           Export the catalog (json, bibtex, pdfs_zip, bundle_zip)
  graph-export     Export a citation-graph slice
  backfill-edges   Materialize pending citation edges
  status           Show project status
  reset            Reset local project data (destructive!)

Global Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	ui.InitColors(globals.NoColor)

	if showVersion {
		fmt.Printf("biblio version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		return
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "ingest-pdf":
		runIngestPDF(cmdArgs, globals)
	case "ingest-bibtex":
		runIngestBibtex(cmdArgs, globals)
	case "keyword-search":
		runKeywordSearch(cmdArgs, globals)
	case "enrich-batch":
		runEnrichBatch(cmdArgs, globals)
	case "download-batch":
		runDownloadBatch(cmdArgs, globals)
	case "export":
		runExport(cmdArgs, globals)
	case "graph-export":
		runGraphExport(cmdArgs, globals)
	case "backfill-edges":
		runBackfillEdges(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "reset":
		runReset(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fs.Usage()
		os.Exit(1)
	}
}
