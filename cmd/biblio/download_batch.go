// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	pflag "github.com/spf13/pflag"

	"github.com/kraklabs/biblio/internal/bootstrap"
	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
	"github.com/kraklabs/biblio/pkg/orchestrator"
	"github.com/kraklabs/biblio/pkg/queue"
	"github.com/kraklabs/biblio/pkg/store"
)

// runDownloadBatch executes 'biblio download-batch': claims a lease-bounded
// batch of queued rows, fetches each row's resolved URL to the PDF
// library, and completes or fails the claim (§6 download-batch).
func runDownloadBatch(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("download-batch", pflag.ExitOnError)
	limit := fs.Int("limit", orchestrator.DefaultDownloadBatchSize, "Maximum rows to claim")
	workerID := fs.String("worker-id", "", "Stable worker identity for claimed rows; random if empty")
	corpusName := fs.String("corpus", "", "Restrict to rows belonging to this corpus")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio download-batch [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	pc := projectConfig(globals)
	s := openStore(globals)
	defer func() { _ = s.Close() }()

	pdfLibraryDir := filepath.Join(resolveDataDir(pc), "pdf_library")

	worker := queue.NewWorker(s, queue.Config{ID: *workerID})
	orch := orchestrator.New(orchestrator.Config{Store: s, Worker: worker})

	ctx := context.Background()
	var corpusID *int64
	if *corpusName != "" {
		id, err := s.EnsureCorpus(ctx, *corpusName, time.Now())
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				"Cannot resolve corpus", err.Error(), "Check the catalog database isn't locked by another process", err,
			))
		}
		corpusID = &id
	}

	rows, err := orch.ClaimBatch(ctx, orchestrator.ClaimBatchOptions{Limit: *limit, CorpusID: corpusID})
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot claim download batch", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	var succeeded, failed int
	for _, row := range rows {
		filePath, checksum, fetchErr := fetchToLibrary(ctx, client, row, pdfLibraryDir)
		if completeErr := orch.CompleteDownload(ctx, row.ID, filePath, checksum, "http", fetchErr); completeErr != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				fmt.Sprintf("Cannot complete download for row %d", row.ID), completeErr.Error(),
				"Check the catalog database isn't locked by another process", completeErr,
			))
		}
		if fetchErr != nil {
			failed++
		} else {
			succeeded++
		}
	}

	summary := struct {
		Claimed   int `json:"claimed"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}{len(rows), succeeded, failed}

	if globals.JSON {
		_ = outputJSON(summary)
		return
	}
	ui.Success(fmt.Sprintf("Claimed %d: %d succeeded, %d failed", len(rows), succeeded, failed))
}

// fetchToLibrary downloads row.URL into libraryDir, named by the row's id,
// returning the stored path and SHA-256 checksum.
func fetchToLibrary(ctx context.Context, client *http.Client, row store.EnrichedRow, libraryDir string) (string, string, error) {
	if row.URL == "" {
		return "", "", fmt.Errorf("row %d has no resolved download url", row.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, row.URL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", row.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch %s: status %d", row.URL, resp.StatusCode)
	}

	if err := os.MkdirAll(libraryDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create pdf library dir: %w", err)
	}

	filePath := filepath.Join(libraryDir, fmt.Sprintf("%d.pdf", row.ID))
	f, err := os.Create(filePath)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", filePath, err)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, hasher), resp.Body); err != nil {
		_ = f.Close()
		return "", "", fmt.Errorf("write %s: %w", filePath, err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close %s: %w", filePath, err)
	}

	return filePath, hex.EncodeToString(hasher.Sum(nil)), nil
}

// resolveDataDir mirrors bootstrap's default data directory resolution so
// the pdf_library path is correct without requiring the project to have
// been opened through bootstrap.InitProject in this process.
func resolveDataDir(pc bootstrap.ProjectConfig) string {
	if pc.DataDir != "" {
		return pc.DataDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".biblio", "data", pc.ProjectID)
}
