// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	pflag "github.com/spf13/pflag"

	"github.com/kraklabs/biblio/internal/bibtex"
	bibliErrors "github.com/kraklabs/biblio/internal/errors"
	"github.com/kraklabs/biblio/internal/ui"
	"github.com/kraklabs/biblio/pkg/store"
)

// runExport executes 'biblio export': a read-only snapshot of the catalog
// in one of four formats (§6 export).
func runExport(args []string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("export", pflag.ExitOnError)
	format := fs.String("format", "json", "Export format: json, bibtex, pdfs_zip, bundle_zip")
	out := fs.String("out", "", "Output file path (defaults to stdout for json/bibtex)")
	corpusName := fs.String("corpus", "", "Restrict to this corpus")
	year := fs.Int("year", 0, "Restrict to this publication year (0 = any)")
	orphans := fs.Bool("orphans", false, "List PDF-library files with no matching catalog row, instead of exporting")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: biblio export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	s := openStore(globals)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if *orphans {
		runOrphanReport(globals, s, ctx)
		return
	}

	filter := store.ExportFilter{DownloadedOnly: *format == "pdfs_zip" || *format == "bundle_zip"}
	if *corpusName != "" {
		id, err := s.EnsureCorpus(ctx, *corpusName, time.Now())
		if err != nil {
			fatalErr(globals, bibliErrors.NewStoreError(
				"Cannot resolve corpus", err.Error(), "Check the catalog database isn't locked by another process", err,
			))
		}
		filter.CorpusID = &id
	}
	if *year != 0 {
		filter.Year = year
	}

	rows, err := s.ListExportRows(ctx, filter)
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot list export rows", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}

	switch *format {
	case "json":
		exportJSON(globals, rows, *out)
	case "bibtex":
		exportBibtex(globals, rows, *out)
	case "pdfs_zip":
		exportPDFsZip(globals, rows, *out)
	case "bundle_zip":
		exportBundleZip(globals, rows, *out)
	default:
		fatalErr(globals, bibliErrors.NewInputError(
			"Unknown export format", fmt.Sprintf("format %q is not recognized", *format),
			"Use one of: json, bibtex, pdfs_zip, bundle_zip",
		))
	}
}

func exportJSON(globals GlobalFlags, rows []store.EnrichedRow, out string) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		fatalf(globals, "Error: %v\n", err)
	}
	writeOrPrint(globals, out, data)
}

func exportBibtex(globals GlobalFlags, rows []store.EnrichedRow, out string) {
	var buf []byte
	for _, row := range rows {
		var authors, keywords []string
		_ = json.Unmarshal([]byte(row.AuthorsJSON), &authors)
		_ = json.Unmarshal([]byte(row.KeywordsJSON), &keywords)

		entry := bibtex.FormatEntry(bibtex.FormatInput{
			Key:       bibtexKey(row),
			EntryType: row.EntryType,
			Title:     row.Title,
			Year:      row.Year,
			DOI:       row.DOI,
			Container: row.Container,
			Volume:    row.Volume,
			Issue:     row.Issue,
			Pages:     row.Pages,
			Publisher: row.Publisher,
			URL:       row.URL,
			ISBN:      row.ISBN,
			ISSN:      row.ISSN,
			Abstract:  row.Abstract,
			Authors:   authors,
			Keywords:  keywords,
		})
		buf = append(buf, []byte(entry+"\n")...)
	}
	writeOrPrint(globals, out, buf)
}

func bibtexKey(row store.EnrichedRow) string {
	year := ""
	if row.Year != nil {
		year = fmt.Sprintf("%d", *row.Year)
	}
	return fmt.Sprintf("ref%d%s", row.ID, year)
}

func exportPDFsZip(globals GlobalFlags, rows []store.EnrichedRow, out string) {
	if out == "" {
		fatalErr(globals, bibliErrors.NewInputError(
			"--out is required", "pdfs_zip format writes a zip archive to a file", "Pass --out path/to/archive.zip",
		))
	}
	f, err := os.Create(out)
	if err != nil {
		fatalErr(globals, bibliErrors.NewPermissionError(
			"Cannot create output file", err.Error(), "Check the --out path is writable", err,
		))
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	seen := make(map[string]bool)
	skipped := 0
	for _, row := range rows {
		if row.FilePath == nil || *row.FilePath == "" {
			continue
		}
		base := filepath.Base(*row.FilePath)
		if seen[base] {
			skipped++
			continue
		}
		seen[base] = true
		if err := addFileToZip(zw, *row.FilePath, base); err != nil {
			fatalf(globals, "Error: %v\n", err)
		}
	}
	if err := zw.Close(); err != nil {
		fatalf(globals, "Error: %v\n", err)
	}

	if globals.JSON {
		_ = outputJSON(struct {
			Files   int `json:"files"`
			Skipped int `json:"skipped"`
		}{len(seen), skipped})
		return
	}
	ui.Success(fmt.Sprintf("Wrote %s: %d files, %d duplicate names skipped", out, len(seen), skipped))
}

func exportBundleZip(globals GlobalFlags, rows []store.EnrichedRow, out string) {
	if out == "" {
		fatalErr(globals, bibliErrors.NewInputError(
			"--out is required", "bundle_zip format writes a zip archive to a file", "Pass --out path/to/bundle.zip",
		))
	}
	f, err := os.Create(out)
	if err != nil {
		fatalErr(globals, bibliErrors.NewPermissionError(
			"Cannot create output file", err.Error(), "Check the --out path is writable", err,
		))
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)

	metadata, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		fatalf(globals, "Error: %v\n", err)
	}
	mw, err := zw.Create("catalog.json")
	if err != nil {
		fatalf(globals, "Error: %v\n", err)
	}
	if _, err := mw.Write(metadata); err != nil {
		fatalf(globals, "Error: %v\n", err)
	}

	seen := make(map[string]bool)
	skipped := 0
	for _, row := range rows {
		if row.FilePath == nil || *row.FilePath == "" {
			continue
		}
		base := filepath.Join("pdfs", filepath.Base(*row.FilePath))
		if seen[base] {
			skipped++
			continue
		}
		seen[base] = true
		if err := addFileToZip(zw, *row.FilePath, base); err != nil {
			fatalf(globals, "Error: %v\n", err)
		}
	}
	if err := zw.Close(); err != nil {
		fatalf(globals, "Error: %v\n", err)
	}

	if globals.JSON {
		_ = outputJSON(struct {
			Files   int `json:"files"`
			Skipped int `json:"skipped"`
		}{len(seen), skipped})
		return
	}
	ui.Success(fmt.Sprintf("Wrote %s: catalog.json + %d files, %d duplicate names skipped", out, len(seen), skipped))
}

func addFileToZip(zw *zip.Writer, srcPath, nameInZip string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer func() { _ = src.Close() }()

	w, err := zw.Create(nameInZip)
	if err != nil {
		return fmt.Errorf("add %s to zip: %w", nameInZip, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("copy %s into zip: %w", srcPath, err)
	}
	return nil
}

func writeOrPrint(globals GlobalFlags, out string, data []byte) {
	if out == "" {
		_, _ = os.Stdout.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Println()
		}
		return
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fatalf(globals, "Error: %v\n", err)
	}
	if !globals.JSON {
		ui.Success(fmt.Sprintf("Wrote %s", out))
	}
}

// runOrphanReport lists PDF-library files with no matching downloaded row
// (§C.3 "read-only report only").
func runOrphanReport(globals GlobalFlags, s *store.Store, ctx context.Context) {
	pc := projectConfig(globals)
	libraryDir := filepath.Join(resolveDataDir(pc), "pdf_library")

	entries, err := os.ReadDir(libraryDir)
	if err != nil {
		if os.IsNotExist(err) {
			_ = outputJSON(struct {
				Orphans []string `json:"orphans"`
			}{nil})
			return
		}
		fatalErr(globals, bibliErrors.NewPermissionError(
			"Cannot read pdf_library directory", err.Error(), "Check permissions on the project's data directory", err,
		))
	}

	rows, err := s.ListExportRows(ctx, store.ExportFilter{DownloadedOnly: true})
	if err != nil {
		fatalErr(globals, bibliErrors.NewStoreError(
			"Cannot list export rows", err.Error(), "Check the catalog database isn't locked by another process", err,
		))
	}
	known := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.FilePath != nil && *row.FilePath != "" {
			known[filepath.Base(*row.FilePath)] = true
		}
	}

	var orphans []string
	for _, entry := range entries {
		if entry.IsDir() || known[entry.Name()] {
			continue
		}
		orphans = append(orphans, entry.Name())
	}

	if globals.JSON {
		_ = outputJSON(struct {
			Orphans []string `json:"orphans"`
		}{orphans})
		return
	}
	if len(orphans) == 0 {
		ui.Success("No orphaned files")
		return
	}
	ui.Header(fmt.Sprintf("%d orphaned file(s)", len(orphans)))
	for _, name := range orphans {
		fmt.Println("  " + name)
	}
}
