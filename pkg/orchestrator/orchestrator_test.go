// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	bibliotesting "github.com/kraklabs/biblio/internal/testing"
	"github.com/kraklabs/biblio/pkg/enrich"
	"github.com/kraklabs/biblio/pkg/expand"
	"github.com/kraklabs/biblio/pkg/queue"
	"github.com/kraklabs/biblio/pkg/store"
)

func newTestOrchestrator(t *testing.T, openAlexURL, crossrefURL string) (*Orchestrator, *store.Store) {
	t.Helper()
	s := bibliotesting.SetupTestStore(t)
	oa := enrich.NewOpenAlexSource(enrich.OpenAlexConfig{BaseURL: openAlexURL})
	cr := enrich.NewCrossrefSource(enrich.CrossrefConfig{BaseURL: crossrefURL})
	matcher := enrich.NewMatcher(oa, cr)
	expander := expand.New(s, oa)
	worker := queue.NewWorker(s, queue.Config{ID: "test-worker"})

	return New(Config{Store: s, Matcher: matcher, Expander: expander, Worker: worker}), s
}

func jsonServer(t *testing.T, body func(r *http.Request) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body(r))
	}))
}

func TestEnrichBatch_PromotesMatchedReference(t *testing.T) {
	openAlex := jsonServer(t, func(r *http.Request) any {
		return map[string]any{
			"results": []map[string]any{{
				"id":               "https://openalex.org/W1",
				"display_name":     "A Treatise on Money",
				"publication_year": 1930,
				"type":             "article",
				"authorships": []map[string]any{{
					"author": map[string]any{"display_name": "John Maynard Keynes"},
				}},
			}},
		}
	})
	defer openAlex.Close()
	crossref := jsonServer(t, func(r *http.Request) any { return map[string]any{"message": map[string]any{"items": []any{}}} })
	defer crossref.Close()

	o, s := newTestOrchestrator(t, openAlex.URL, crossref.URL)

	year := 1930
	bibliotesting.InsertRawFixture(t, s, "A Treatise on Money", bibliotesting.FixtureOptions{Year: &year, Authors: []string{"John Maynard Keynes"}})

	summary, err := o.EnrichBatch(context.Background(), EnrichBatchOptions{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Promoted)

	var enrichedCount int
	require.NoError(t, s.DB().Get(&enrichedCount, `SELECT COUNT(*) FROM enriched_references`))
	require.Equal(t, 1, enrichedCount)
}

func TestEnrichBatch_NoMatchMovesToFailedEnrichment(t *testing.T) {
	openAlex := jsonServer(t, func(r *http.Request) any { return map[string]any{"results": []any{}} })
	defer openAlex.Close()
	crossref := jsonServer(t, func(r *http.Request) any { return map[string]any{"message": map[string]any{"items": []any{}}} })
	defer crossref.Close()

	o, s := newTestOrchestrator(t, openAlex.URL, crossref.URL)

	bibliotesting.InsertRawFixture(t, s, "Totally Obscure Paper")

	summary, err := o.EnrichBatch(context.Background(), EnrichBatchOptions{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.FailedMatch)

	var failedCount int
	require.NoError(t, s.DB().Get(&failedCount, `SELECT COUNT(*) FROM failed_enrichment_references`))
	require.Equal(t, 1, failedCount)
}

func TestEnrichBatch_CancellationStopsBeforeProcessingFurtherRows(t *testing.T) {
	openAlex := jsonServer(t, func(r *http.Request) any { return map[string]any{"results": []any{}} })
	defer openAlex.Close()
	crossref := jsonServer(t, func(r *http.Request) any { return map[string]any{"message": map[string]any{"items": []any{}}} })
	defer crossref.Close()

	o, s := newTestOrchestrator(t, openAlex.URL, crossref.URL)

	for i := 0; i < 3; i++ {
		bibliotesting.InsertRawFixture(t, s, "Paper")
	}

	alreadyCancelled := func() bool { return true }
	summary, err := o.EnrichBatch(context.Background(), EnrichBatchOptions{Concurrency: 1}, alreadyCancelled)
	require.NoError(t, err)
	require.Zero(t, summary.Processed)
}

func TestClaimBatchAndCompleteDownload_FullCycle(t *testing.T) {
	openAlex := jsonServer(t, func(r *http.Request) any { return map[string]any{"results": []any{}} })
	defer openAlex.Close()
	crossref := jsonServer(t, func(r *http.Request) any { return map[string]any{"message": map[string]any{"items": []any{}}} })
	defer crossref.Close()

	o, s := newTestOrchestrator(t, openAlex.URL, crossref.URL)

	ctx := context.Background()
	enrichedID := bibliotesting.InsertEnrichedFixture(t, s, "Paper", "W9")
	bibliotesting.EnqueueFixture(t, s, enrichedID)

	rows, err := o.ClaimBatch(ctx, ClaimBatchOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, o.CompleteDownload(ctx, rows[0].ID, "/tmp/p.pdf", "sha", "openalex", nil))

	var downloadedCount int
	require.NoError(t, s.DB().Get(&downloadedCount, `SELECT COUNT(*) FROM downloaded_references`))
	require.Equal(t, 1, downloadedCount)
}

func TestExpand_RecordsStubsAndEdges(t *testing.T) {
	openAlex := jsonServer(t, func(r *http.Request) any { return map[string]any{"results": []any{}} })
	defer openAlex.Close()
	crossref := jsonServer(t, func(r *http.Request) any { return map[string]any{"message": map[string]any{"items": []any{}}} })
	defer crossref.Close()

	o, s := newTestOrchestrator(t, openAlex.URL, crossref.URL)

	summary, err := o.Expand(context.Background(), "W1", []string{"W2", "W3"}, "", expand.DefaultOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, summary.StubsInserted)
	require.Equal(t, 2, summary.EdgesRecorded)

	var edgeCount int
	require.NoError(t, s.DB().Get(&edgeCount, `SELECT COUNT(*) FROM citation_edges`))
	require.Equal(t, 2, edgeCount)
}

func TestCounts_ReportsStagePopulations(t *testing.T) {
	openAlex := jsonServer(t, func(r *http.Request) any { return map[string]any{"results": []any{}} })
	defer openAlex.Close()
	crossref := jsonServer(t, func(r *http.Request) any { return map[string]any{"message": map[string]any{"items": []any{}}} })
	defer crossref.Close()

	o, s := newTestOrchestrator(t, openAlex.URL, crossref.URL)
	bibliotesting.InsertRawFixture(t, s, "Paper")

	counts, err := o.Counts(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, counts.Raw)
}
