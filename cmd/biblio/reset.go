// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"

	pflag "github.com/spf13/pflag"

	"github.com/kraklabs/biblio/internal/bootstrap"
	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
)

// runReset executes 'biblio reset': deletes all local project data.
// Destructive; requires --yes.
func runReset(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("reset", pflag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: biblio reset --yes

Deletes the project's catalog database. This is destructive and cannot
be undone. The PDF library directory is left untouched (§C.3 — no
automatic file deletion).

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fatalErr(globals, bibliErrors.NewInputError(
			"Confirmation required", "reset deletes the project's catalog database and cannot be undone",
			"Pass --yes to confirm",
		))
	}

	pc := projectConfig(globals)
	info, err := bootstrap.ResetProject(pc)
	if err != nil {
		ui.Info(fmt.Sprintf("No local data found for project %q", projectID(globals)))
		return
	}

	if globals.JSON {
		_ = outputJSON(info)
		return
	}
	ui.Success(fmt.Sprintf("Reset project %q", info.ProjectID))
}
