// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	pflag "github.com/spf13/pflag"

	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
	"github.com/kraklabs/biblio/pkg/graph"
)

// runGraphExport executes 'biblio graph-export': a read-only citation-edge
// slice via seeded BFS (§6 graph-export, §4.9 graph_slice).
func runGraphExport(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("graph-export", pflag.ExitOnError)
	limit := fs.Int("limit", 100, "Maximum nodes to include")
	relationship := fs.String("relationship", "", "Restrict to this relationship type (references, cited_by)")
	year := fs.Int("year", 0, "Restrict to this publication year (0 = any)")
	corpusName := fs.String("corpus", "", "Restrict to this corpus")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio graph-export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	s := openStore(globals)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	filter := graph.SliceFilter{Limit: *limit, RelationshipType: *relationship}
	if *year != 0 {
		filter.Year = year
	}
	if *corpusName != "" {
		id, err := s.EnsureCorpus(ctx, *corpusName, time.Now())
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				"Cannot resolve corpus", err.Error(), "Check the catalog database isn't locked by another process", err,
			))
		}
		filter.CorpusID = &id
	}

	nodes, edges, err := graph.GraphSlice(ctx, s.DB(), filter)
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot export graph slice", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}

	result := struct {
		Nodes []graph.Node `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}{nodes, edges}

	if !globals.JSON {
		ui.Success(fmt.Sprintf("%s nodes, %d edges", strconv.Itoa(len(nodes)), len(edges)))
	}
	_ = outputJSON(result)
}
