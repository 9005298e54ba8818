// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kraklabs/biblio/pkg/ratelimit"
)

const defaultOpenAlexBaseURL = "https://api.openalex.org"

// OpenAlexSource queries the OpenAlex works API (§6 "OpenAlex works
// search"/"OpenAlex cited-by").
type OpenAlexSource struct {
	baseURL string
	mailto  string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// OpenAlexConfig configures an OpenAlexSource.
type OpenAlexConfig struct {
	BaseURL string // defaults to https://api.openalex.org
	Mailto  string // polite-pool identifier (§6 "environment inputs")
	Timeout time.Duration
	Limiter *ratelimit.Limiter
}

// NewOpenAlexSource constructs an OpenAlexSource.
func NewOpenAlexSource(cfg OpenAlexConfig) *OpenAlexSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAlexBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second // §5 "default 60s" external call timeout
	}
	return &OpenAlexSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		mailto:  cfg.Mailto,
		client:  &http.Client{Timeout: timeout},
		limiter: cfg.Limiter,
	}
}

func (s *OpenAlexSource) Name() string { return "openalex" }

type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID              string               `json:"id"`
	DOI             string               `json:"doi"`
	DisplayName     string               `json:"display_name"`
	PublicationYear int                  `json:"publication_year"`
	Type            string               `json:"type"`
	Abstract        map[string][]int     `json:"abstract_inverted_index"`
	Keywords        []openAlexKeyword    `json:"keywords"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	PrimaryLocation *openAlexLocation    `json:"primary_location"`
	ReferencedWorks []string             `json:"referenced_works"`
	CitedByAPIURL   string               `json:"cited_by_api_url"`
}

type openAlexKeyword struct {
	DisplayName string `json:"display_name"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexLocation struct {
	Source *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

func (w openAlexWork) toCandidate() Candidate {
	authors := make([]string, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}
	keywords := make([]string, 0, len(w.Keywords))
	for _, k := range w.Keywords {
		keywords = append(keywords, k.DisplayName)
	}
	var container string
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		container = w.PrimaryLocation.Source.DisplayName
	}
	var year *int
	if w.PublicationYear != 0 {
		y := w.PublicationYear
		year = &y
	}
	return Candidate{
		OpenAlexID:      w.ID,
		DOI:             w.DOI,
		Title:           w.DisplayName,
		Year:            year,
		Type:            w.Type,
		Authors:         authors,
		Container:       container,
		Abstract:        reconstructAbstract(w.Abstract),
		Keywords:        keywords,
		ReferencedWorks: w.ReferencedWorks,
		CitedByAPIURL:   w.CitedByAPIURL,
	}
}

// reconstructAbstract rebuilds the plain-text abstract from OpenAlex's
// inverted index (word → positions), ordering (word, position) pairs by
// position (§4.6 "Record construction").
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type wordPos struct {
		pos  int
		word string
	}
	pairs := make([]wordPos, 0)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, wordPos{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

func (s *OpenAlexSource) buildFilter(q Query, withYear bool) string {
	var parts []string
	if q.Container != "" {
		parts = append(parts, fmt.Sprintf("default.search:%s", q.Container))
	}
	if withYear && q.Year != nil {
		parts = append(parts, fmt.Sprintf("publication_year:%d", *q.Year))
	}
	return strings.Join(parts, ",")
}

// SearchExactTitle is steps 1/4: exact display_name filter plus container and
// (optionally) year.
func (s *OpenAlexSource) SearchExactTitle(ctx context.Context, q Query, withYear bool) ([]Candidate, error) {
	params := url.Values{}
	filter := fmt.Sprintf("display_name.search:%s", q.Title)
	if extra := s.buildFilter(q, withYear); extra != "" {
		filter += "," + extra
	}
	params.Set("filter", filter)
	return s.search(ctx, params)
}

// SearchTitlePhrase is steps 2/5: title.search phrase filter.
func (s *OpenAlexSource) SearchTitlePhrase(ctx context.Context, q Query, withYear bool) ([]Candidate, error) {
	params := url.Values{}
	filter := fmt.Sprintf(`title.search:"%s"`, q.Title)
	if extra := s.buildFilter(q, withYear); extra != "" {
		filter += "," + extra
	}
	params.Set("filter", filter)
	return s.search(ctx, params)
}

// SearchTitleTokens is steps 3/6: title.search token filter (no phrase
// quoting, so OpenAlex treats it as an OR-of-tokens match).
func (s *OpenAlexSource) SearchTitleTokens(ctx context.Context, q Query, withYear bool) ([]Candidate, error) {
	params := url.Values{}
	filter := fmt.Sprintf("title.search:%s", q.Title)
	if extra := s.buildFilter(q, withYear); extra != "" {
		filter += "," + extra
	}
	params.Set("filter", filter)
	return s.search(ctx, params)
}

// SearchFreeText is step 7 (title) and step 9 (container): free-text
// search= query, last resort.
func (s *OpenAlexSource) SearchFreeText(ctx context.Context, text string) ([]Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("search", text)
	return s.search(ctx, params)
}

// CitedByPage fetches one page of a work's cited-by list (§4.7), returning
// the bare OpenAlex ids and whether a further page exists.
func (s *OpenAlexSource) CitedByPage(ctx context.Context, citedByAPIURL string, page int) ([]string, bool, error) {
	if citedByAPIURL == "" {
		return nil, false, nil
	}
	u, err := url.Parse(citedByAPIURL)
	if err != nil {
		return nil, false, fmt.Errorf("parse cited_by_api_url: %w", err)
	}
	q := u.Query()
	q.Set("per-page", "100")
	q.Set("page", strconv.Itoa(page))
	q.Set("select", "id")
	if s.mailto != "" {
		q.Set("mailto", s.mailto)
	}
	u.RawQuery = q.Encode()

	var resp openAlexResponse
	if err := s.getJSON(ctx, u.String(), &resp); err != nil {
		return nil, false, err
	}
	ids := make([]string, len(resp.Results))
	for i, w := range resp.Results {
		ids[i] = w.ID
	}
	return ids, len(resp.Results) == 100, nil
}

func (s *OpenAlexSource) search(ctx context.Context, params url.Values) ([]Candidate, error) {
	if s.mailto != "" {
		params.Set("mailto", s.mailto)
	}
	params.Set("select", "id,doi,display_name,publication_year,type,authorships,primary_location,abstract_inverted_index,keywords,referenced_works,cited_by_api_url")

	reqURL := s.baseURL + "/works?" + params.Encode()

	var resp openAlexResponse
	if err := s.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(resp.Results))
	for i, w := range resp.Results {
		candidates[i] = w.toCandidate()
	}
	return candidates, nil
}

// getJSON issues a GET with a bounded exponential backoff retry on
// transient 5xx/429 (§5 "bounded exponential backoff (max 3 retries)");
// terminal 4xx responses are not retried (§7 category 4).
func (s *OpenAlexSource) getJSON(ctx context.Context, reqURL string, out any) error {
	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx, 0)
		if err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		defer release()
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		ua := "biblio-enrich/1.0"
		if s.mailto != "" {
			ua = fmt.Sprintf("biblio-enrich/1.0 (mailto:%s)", s.mailto)
		}
		req.Header.Set("User-Agent", ua)

		resp, err := s.client.Do(req)
		if err != nil {
			return err // network error: retry
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(out)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("openalex returned %d", resp.StatusCode) // transient: retry
		default:
			return backoff.Permanent(fmt.Errorf("openalex returned %d", resp.StatusCode))
		}
	}, policy)
}
