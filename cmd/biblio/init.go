// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"
	"path/filepath"

	pflag "github.com/spf13/pflag"

	"github.com/kraklabs/biblio/internal/bootstrap"
	"github.com/kraklabs/biblio/internal/config"
	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
)

// runInit executes 'biblio init': creates the project's catalog database,
// PDF library directory, and .biblio/project.yaml configuration file.
func runInit(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("init", pflag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing configuration")
	corpus := fs.String("corpus", "", "Default corpus name")
	mailto := fs.String("mailto", "", "OpenAlex/Crossref polite-pool contact email")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio init [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	pc := projectConfig(globals)
	info, err := bootstrap.InitProject(pc, newLogger(globals))
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot initialize project", err.Error(), "Check --project/--data-dir are writable", err,
		))
	}

	cfgPath := filepath.Join(info.DataDir, ".biblio", "project.yaml")
	if _, statErr := os.Stat(cfgPath); statErr == nil && !*force {
		ui.Info(fmt.Sprintf("Configuration already exists at %s (use --force to overwrite)", cfgPath))
	} else {
		cfg := config.DefaultConfig()
		cfg.StoragePath = info.CatalogPath
		cfg.PDFLibrary = info.PDFLibraryDir
		cfg.DefaultCorpus = *corpus
		cfg.OpenAlexMailto = *mailto
		cfg.CrossrefMailto = *mailto

		if saveErr := cfg.Save(cfgPath); saveErr != nil {
			fatalErr(globals, bibliErrors.NewPermissionError(
				"Cannot write project configuration", saveErr.Error(), "Check the data directory is writable", saveErr,
			))
		}
	}

	if globals.JSON {
		_ = outputJSON(info)
		return
	}
	ui.Success(fmt.Sprintf("Initialized project %q", info.ProjectID))
	ui.Info("Data dir:     " + info.DataDir)
	ui.Info("Catalog:      " + info.CatalogPath)
	ui.Info("PDF library:  " + info.PDFLibraryDir)
	ui.Info("Config:       " + cfgPath)
}
