// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/biblio/internal/bootstrap"
	"github.com/kraklabs/biblio/internal/config"
	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/pkg/enrich"
	"github.com/kraklabs/biblio/pkg/ratelimit"
	"github.com/kraklabs/biblio/pkg/store"
)

// projectID returns the explicit --project override or the current
// directory's base name, matching the teacher's default-to-cwd-name
// convention.
func projectID(globals GlobalFlags) string {
	if globals.Project != "" {
		return globals.Project
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "default"
	}
	return filepath.Base(cwd)
}

// newLogger builds the root slog.Logger for a CLI invocation: text handler
// for a TTY, JSON handler otherwise (§A.1).
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func projectConfig(globals GlobalFlags) bootstrap.ProjectConfig {
	return bootstrap.ProjectConfig{
		ProjectID: projectID(globals),
		DataDir:   globals.DataDir,
	}
}

// openStore opens an already-initialized project's catalog, exiting with a
// UserError-formatted message (§A.2 ExitStore) on failure.
func openStore(globals GlobalFlags) *store.Store {
	s, err := bootstrap.OpenProject(projectConfig(globals), newLogger(globals))
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot open project catalog",
			err.Error(),
			"Run 'biblio init' first, or check --project/--data-dir",
			err,
		))
	}
	return s
}

// fatalErr prints err using the §A.2 exit-code taxonomy and exits: a
// *errors.UserError exits with its own category code (colored Format()
// for humans, ToJSON() under --json); any other error exits ExitInternal.
// Never returns.
func fatalErr(globals GlobalFlags, err error) {
	bibliErrors.FatalError(err, globals.JSON)
}

// fatalf prints a plain CLI usage/argument message (respecting --json) and
// exits ExitInput (§A.2) — the bucket for invalid flags/arguments and
// uncategorized command failures that never produced a typed UserError.
func fatalf(globals GlobalFlags, format string, args ...any) {
	if globals.JSON {
		_ = jsonErrorf(format, args...)
	} else {
		printf(os.Stderr, format, args...)
	}
	os.Exit(bibliErrors.ExitInput)
}

// loadProjectConfig loads .biblio/project.yaml for the current project,
// falling back to config.DefaultConfig() if the project hasn't been
// initialized with 'biblio init' yet.
func loadProjectConfig(globals GlobalFlags) *config.Config {
	pc := projectConfig(globals)
	dataDir := globals.DataDir
	if dataDir == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(homeDir, ".biblio", "data", pc.ProjectID)
		}
	}
	cfgPath := filepath.Join(dataDir, ".biblio", "project.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot load project configuration",
			err.Error(),
			"Run 'biblio init' first, or check --project/--data-dir",
			err,
		))
	}
	return cfg
}

func rateLimiter(cfg *config.Config, endpoint string) *ratelimit.Limiter {
	rl := cfg.RateLimit(endpoint)
	return ratelimit.New(ratelimit.Config{
		RequestsPerMinute:    rl.RequestsPerMinute,
		InputTokensPerMinute: rl.InputTokensPerMinute,
		MaxInFlight:          rl.MaxConcurrent,
	})
}

// newOpenAlexSource builds an OpenAlexSource wired from project config.
func newOpenAlexSource(cfg *config.Config) *enrich.OpenAlexSource {
	return enrich.NewOpenAlexSource(enrich.OpenAlexConfig{
		Mailto:  cfg.OpenAlexMailto,
		Limiter: rateLimiter(cfg, "openalex"),
	})
}

// newCrossrefSource builds a CrossrefSource wired from project config.
func newCrossrefSource(cfg *config.Config) *enrich.CrossrefSource {
	return enrich.NewCrossrefSource(enrich.CrossrefConfig{
		Mailto:  cfg.CrossrefMailto,
		Limiter: rateLimiter(cfg, "crossref"),
	})
}

// ProgressConfig determines if and how progress should be displayed,
// generalized from the teacher's identically-named type.
type ProgressConfig struct {
	Enabled bool
	Writer  io.Writer
	NoColor bool
}

// NewProgressConfig builds a ProgressConfig from global flags and TTY
// detection: progress is disabled for --json, --quiet, or a non-TTY
// stderr.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && !globals.JSON && isatty.IsTerminal(os.Stderr.Fd())
	return ProgressConfig{Enabled: enabled, Writer: os.Stderr, NoColor: globals.NoColor}
}

// NewProgressBar returns nil when progress is disabled, so callers can
// update it unconditionally.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer: "=", SaucerHead: ">", SaucerPadding: " ", BarStart: "[", BarEnd: "]",
		}),
	)
}

// NewSpinner returns an indeterminate spinner for operations whose total
// item count isn't known up front (e.g. a batch drained server-side).
// Returns nil when progress is disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}
