// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package enrich implements the enrichment matcher (C6): given a raw
// reference, search OpenAlex and Crossref with the nine-step strategy table
// and return either an enriched record or none (§4.6).
package enrich

import (
	"context"
	"sort"

	"github.com/kraklabs/biblio/pkg/normalize"
)

// Query is the subset of a raw reference's fields the matcher searches on.
type Query struct {
	Title     string
	Container string
	Year      *int
	Authors   []string // display-name strings
	Editors   []string
}

// Candidate is one hit from a search step, carrying its provenance.
type Candidate struct {
	OpenAlexID      string
	DOI             string
	Title           string
	Year            *int
	Type            string
	Authors         []string
	Container       string
	Abstract        string
	Keywords        []string
	ReferencedWorks []string
	CitedByAPIURL   string
	EarliestStep    int
}

// OpenAlexSource and CrossrefSource (see openalex.go, crossref.go) are the
// two concrete search backends behind the nine-step strategy table. Matcher
// depends on them by concrete type rather than a narrower interface because
// each step's query shape (exact display_name, phrase search, token search,
// free text) is specific to the backend's filter syntax — mirroring the
// per-backend-struct shape of this codebase's LLM provider package, just
// without a shared interface since the call shapes never converge here.

// step records which search function produced a set of candidates, purely
// for the "earliest step wins ties" ordering rule in §4.6.
type step struct {
	index int
	fn    func(ctx context.Context, q Query) ([]Candidate, error)
}

// Matcher runs the ordered search strategy and scores the resulting
// candidate set (§4.6).
type Matcher struct {
	openAlex *OpenAlexSource
	crossref *CrossrefSource
}

// NewMatcher constructs a Matcher against the given OpenAlex and Crossref
// sources.
func NewMatcher(openAlex *OpenAlexSource, crossref *CrossrefSource) *Matcher {
	return &Matcher{openAlex: openAlex, crossref: crossref}
}

// Match runs all nine search steps in order, deduplicates by OpenAlex id
// (by DOI when the id is empty; candidates with neither are dropped),
// scores every candidate, and returns the accepted one (or nil if no
// candidate scores above zero). Per-step network failures are swallowed:
// a failing step simply contributes no candidates (§4.6, §7 category 3/4).
func (m *Matcher) Match(ctx context.Context, q Query) (*Candidate, error) {
	steps := []step{
		{1, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchExactTitle(ctx, q, true) }},
		{2, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchTitlePhrase(ctx, q, true) }},
		{3, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchTitleTokens(ctx, q, true) }},
		{4, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchExactTitle(ctx, q, false) }},
		{5, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchTitlePhrase(ctx, q, false) }},
		{6, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchTitleTokens(ctx, q, false) }},
		{7, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchFreeText(ctx, q.Title) }},
		{8, func(ctx context.Context, q Query) ([]Candidate, error) { return m.crossref.Search(ctx, q) }},
		{9, func(ctx context.Context, q Query) ([]Candidate, error) { return m.openAlex.SearchFreeText(ctx, q.Container) }},
	}

	byID := make(map[string]*Candidate)
	order := make([]string, 0)
	for _, st := range steps {
		candidates, err := st.fn(ctx, q)
		if err != nil {
			continue // a step's failure never aborts the search (§4.6)
		}
		for _, c := range candidates {
			key := c.OpenAlexID
			if key == "" {
				key = c.DOI
			}
			if key == "" {
				continue
			}
			if existing, ok := byID[key]; ok {
				if st.index < existing.EarliestStep {
					existing.EarliestStep = st.index
				}
				continue
			}
			c := c
			c.EarliestStep = st.index
			byID[key] = &c
			order = append(order, key)
		}
	}

	scored := make([]scoredCandidate, 0, len(order))
	for _, key := range order {
		c := byID[key]
		scored = append(scored, scoredCandidate{candidate: c, score: authorScore(q, *c)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].candidate.EarliestStep < scored[j].candidate.EarliestStep
	})

	if len(scored) == 0 || scored[0].score <= 0 {
		return nil, nil
	}
	return scored[0].candidate, nil
}

type scoredCandidate struct {
	candidate *Candidate
	score     float64
}

// authorScore implements §4.6's scoring rule: matched_count /
// max(reference_person_count, candidate_author_count), where reference
// persons include both authors and editors.
func authorScore(q Query, c Candidate) float64 {
	persons := append(append([]string{}, q.Authors...), q.Editors...)
	if len(c.Authors) == 0 {
		return 0
	}

	matched := 0
	for _, person := range persons {
		for _, candidateAuthor := range c.Authors {
			if authorsMatch(person, candidateAuthor) {
				matched++
				break
			}
		}
	}

	denom := len(persons)
	if len(c.Authors) > denom {
		denom = len(c.Authors)
	}
	if denom == 0 {
		return 0
	}
	return float64(matched) / float64(denom)
}

// authorsMatch implements §4.6's per-author rule: last names must be fuzzy
// similar at ≥90; then either the initials agree, the full initials string
// matches, or the first names are fuzzy-partial similar at ≥70.
func authorsMatch(refAuthor, candidateAuthor string) bool {
	ref := normalize.AuthorName(refAuthor)
	cand := normalize.AuthorName(candidateAuthor)
	if ref.Last == "" || cand.Last == "" {
		return false
	}

	if ratio(ref.Last, cand.Last) < 90 {
		return false
	}

	if ref.Initials != "" && cand.Initials != "" {
		if ref.Initials == cand.Initials {
			return true
		}
		if len(ref.Initials) == 1 && ref.Initials[0] == cand.Initials[0] {
			return true
		}
	}

	if ref.Given == "" || cand.Given == "" {
		return false
	}
	return partialRatio(ref.Given, cand.Given) >= 70
}
