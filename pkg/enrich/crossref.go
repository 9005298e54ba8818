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
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kraklabs/biblio/pkg/ratelimit"
)

const defaultCrossrefBaseURL = "https://api.crossref.org"

// CrossrefSource queries the Crossref works API (§6 "Crossref works"),
// used as step 8 of the search strategy.
type CrossrefSource struct {
	baseURL string
	mailto  string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// CrossrefConfig configures a CrossrefSource.
type CrossrefConfig struct {
	BaseURL string
	Mailto  string
	Timeout time.Duration
	Limiter *ratelimit.Limiter
}

// NewCrossrefSource constructs a CrossrefSource.
func NewCrossrefSource(cfg CrossrefConfig) *CrossrefSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultCrossrefBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &CrossrefSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		mailto:  cfg.Mailto,
		client:  &http.Client{Timeout: timeout},
		limiter: cfg.Limiter,
	}
}

func (s *CrossrefSource) Name() string { return "crossref" }

type crossrefResponse struct {
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI            string            `json:"DOI"`
	Title          []string          `json:"title"`
	Author         []crossrefAuthor  `json:"author"`
	ContainerTitle []string          `json:"container-title"`
	Published      crossrefDateParts `json:"published"`
	Type           string            `json:"type"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossrefDateParts struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossrefDateParts) year() *int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return nil
	}
	y := d.DateParts[0][0]
	return &y
}

func (it crossrefItem) toCandidate() Candidate {
	var title string
	if len(it.Title) > 0 {
		title = it.Title[0]
	}
	var container string
	if len(it.ContainerTitle) > 0 {
		container = it.ContainerTitle[0]
	}
	authors := make([]string, 0, len(it.Author))
	for _, a := range it.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			authors = append(authors, name)
		}
	}
	return Candidate{
		DOI:       it.DOI,
		Title:     title,
		Year:      it.Published.year(),
		Type:      it.Type,
		Authors:   authors,
		Container: container,
	}
}

// Search implements step 8: title + container-title + published filters
// (§4.6 step 8).
func (s *CrossrefSource) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if strings.TrimSpace(q.Title) == "" {
		return nil, nil
	}

	params := url.Values{}
	queryParts := []string{q.Title}
	if q.Container != "" {
		queryParts = append(queryParts, q.Container)
	}
	params.Set("query.bibliographic", strings.Join(queryParts, " "))
	if q.Title != "" {
		params.Set("query.title", q.Title)
	}
	if q.Container != "" {
		params.Set("query.container-title", q.Container)
	}
	if q.Year != nil {
		params.Set("filter", fmt.Sprintf("from-pub-date:%d-01-01,until-pub-date:%d-12-31", *q.Year, *q.Year))
	}
	params.Set("rows", "10")
	if s.mailto != "" {
		params.Set("mailto", s.mailto)
	}

	reqURL := s.baseURL + "/works?" + params.Encode()

	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		defer release()
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	var resp crossrefResponse
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		ua := "biblio-enrich/1.0"
		if s.mailto != "" {
			ua = fmt.Sprintf("biblio-enrich/1.0 (mailto:%s)", s.mailto)
		}
		req.Header.Set("User-Agent", ua)

		httpResp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		switch {
		case httpResp.StatusCode == http.StatusOK:
			return json.NewDecoder(httpResp.Body).Decode(&resp)
		case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
			return fmt.Errorf("crossref returned %d", httpResp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("crossref returned %d", httpResp.StatusCode))
		}
	}, policy)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(resp.Message.Items))
	for i, it := range resp.Message.Items {
		candidates[i] = it.toCandidate()
	}
	return candidates, nil
}
