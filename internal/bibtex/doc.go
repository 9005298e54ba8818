// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package bibtex parses .bib files for the ingest-bibtex operation (§6).
//
// Parse splits a file's contents into Entry values; Entry.ToFields maps
// one entry onto the field set ingest-bibtex needs to build a raw
// reference row, including the entry re-serialized to JSON for the
// bibtex_entry_json verbatim-preservation column (§3).
//
// Malformed entries are skipped rather than aborting the whole file (§7,
// per-row Validation errors are never fatal to the rest of the file).
// Parse drops them without counting them, so ingest-bibtex's "malformed"
// total covers only entries that ToFields rejects.
package bibtex
