// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package enrich

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatcher_AcceptsTopScoringCandidate(t *testing.T) {
	openAlexServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAlexResponse{
			Results: []openAlexWork{
				{
					ID:              "https://openalex.org/W123",
					DOI:             "10.1111/j.1468-0335.1937.tb00002.x",
					DisplayName:     "The Nature of the Firm",
					PublicationYear: 1937,
					Type:            "article",
					Authorships: []openAlexAuthorship{
						{Author: struct {
							DisplayName string `json:"display_name"`
						}{DisplayName: "Ronald H. Coase"}},
					},
				},
			},
		})
	}))
	defer openAlexServer.Close()

	crossrefServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(crossrefResponse{})
	}))
	defer crossrefServer.Close()

	oa := NewOpenAlexSource(OpenAlexConfig{BaseURL: openAlexServer.URL})
	cr := NewCrossrefSource(CrossrefConfig{BaseURL: crossrefServer.URL})
	matcher := NewMatcher(oa, cr)

	year := 1937
	result, err := matcher.Match(t.Context(), Query{
		Title:   "The Nature of the Firm",
		Year:    &year,
		Authors: []string{"Ronald H. Coase"},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "https://openalex.org/W123", result.OpenAlexID)
}

func TestMatcher_NoCandidatesReturnsNil(t *testing.T) {
	emptyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAlexResponse{})
	}))
	defer emptyServer.Close()

	oa := NewOpenAlexSource(OpenAlexConfig{BaseURL: emptyServer.URL})
	cr := NewCrossrefSource(CrossrefConfig{BaseURL: emptyServer.URL})
	matcher := NewMatcher(oa, cr)

	result, err := matcher.Match(t.Context(), Query{Title: "Nonexistent Paper"})
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestMatcher_ZeroScoreCandidateRejected(t *testing.T) {
	openAlexServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAlexResponse{
			Results: []openAlexWork{
				{
					ID:          "https://openalex.org/W999",
					DisplayName: "Unrelated Work",
					Authorships: []openAlexAuthorship{
						{Author: struct {
							DisplayName string `json:"display_name"`
						}{DisplayName: "Someone Else"}},
					},
				},
			},
		})
	}))
	defer openAlexServer.Close()

	emptyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(crossrefResponse{})
	}))
	defer emptyServer.Close()

	oa := NewOpenAlexSource(OpenAlexConfig{BaseURL: openAlexServer.URL})
	cr := NewCrossrefSource(CrossrefConfig{BaseURL: emptyServer.URL})
	matcher := NewMatcher(oa, cr)

	result, err := matcher.Match(t.Context(), Query{
		Title:   "Some Paper",
		Authors: []string{"Ronald H. Coase"},
	})
	require.NoError(t, err)
	require.Nil(t, result)
}
