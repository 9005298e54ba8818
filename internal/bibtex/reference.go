// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bibtex

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ReferenceFields is the field set, produced by Entry.ToFields, that
// ingest-bibtex needs to build a store.Reference (§3 "bibtex_entry_json — original
// structured entry preserved verbatim"): title/year/doi/container plus the
// author and keyword lists, and the entry serialized back to JSON for the
// verbatim-preservation column.
type ReferenceFields struct {
	Title     string
	Year      *int
	DOI       string
	EntryType string
	Container string
	Volume    string
	Issue     string
	Pages     string
	Publisher string
	URL       string
	ISBN      string
	ISSN      string
	Abstract  string
	Authors   []string
	Keywords  []string

	EntryJSON string
}

// entryTypeToCategory maps common BibTeX entry types onto the Reference
// entry_type vocabulary (§3). Unknown BibTeX types pass through unchanged.
var entryTypeToCategory = map[string]string{
	"article":       "journal-article",
	"inproceedings": "proceedings-article",
	"incollection":  "book-chapter",
	"book":          "book",
	"phdthesis":     "dissertation",
	"mastersthesis": "dissertation",
	"techreport":    "report",
	"misc":          "other",
}

// ToFields converts a parsed Entry into the field set an ingest-bibtex
// caller passes to store.InsertRaw.
func (e Entry) ToFields() (ReferenceFields, error) {
	f := ReferenceFields{
		Title:     e.Field("title"),
		DOI:       e.Field("doi"),
		Volume:    e.Field("volume"),
		Issue:     e.Field("number"),
		Pages:     e.Field("pages"),
		Publisher: e.Field("publisher"),
		URL:       e.Field("url"),
		ISBN:      e.Field("isbn"),
		ISSN:      e.Field("issn"),
		Abstract:  e.Field("abstract"),
		Authors:   SplitAuthors(e.Field("author")),
		Keywords:  SplitKeywords(e.Field("keywords")),
	}

	f.EntryType = entryTypeToCategory[e.Type]
	if f.EntryType == "" {
		f.EntryType = e.Type
	}

	switch e.Type {
	case "article":
		f.Container = e.Field("journal")
	case "inproceedings", "incollection":
		f.Container = e.Field("booktitle")
	}

	if y := e.Field("year"); y != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(y)); err == nil {
			f.Year = &n
		}
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return ReferenceFields{}, err
	}
	f.EntryJSON = string(raw)

	return f, nil
}
