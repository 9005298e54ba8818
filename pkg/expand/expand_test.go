// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package expand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	bibliotesting "github.com/kraklabs/biblio/internal/testing"
	"github.com/kraklabs/biblio/pkg/enrich"
)

func TestExpandWork_InsertsStubsAndEdgesForReferences(t *testing.T) {
	s := bibliotesting.SetupTestStore(t)
	oa := enrich.NewOpenAlexSource(enrich.OpenAlexConfig{})
	expander := New(s, oa)

	summary, err := expander.ExpandWork(context.Background(), "W1", []string{"W2", "W3"}, "", DefaultOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, summary.StubsInserted)
	require.Equal(t, 2, summary.EdgesRecorded)

	var stubCount int
	require.NoError(t, s.DB().Get(&stubCount, `SELECT COUNT(*) FROM enriched_references`))
	require.Equal(t, 2, stubCount)

	var edgeCount int
	require.NoError(t, s.DB().Get(&edgeCount, `SELECT COUNT(*) FROM citation_edges`))
	require.Equal(t, 2, edgeCount)
}

func TestExpandWork_RespectsMaxRelatedPerReference(t *testing.T) {
	s := bibliotesting.SetupTestStore(t)
	oa := enrich.NewOpenAlexSource(enrich.OpenAlexConfig{})
	expander := New(s, oa)

	opts := DefaultOptions()
	opts.MaxRelatedPerReference = 1
	summary, err := expander.ExpandWork(context.Background(), "W1", []string{"W2", "W3", "W4"}, "", opts, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.StubsInserted)
}

func TestExpandWork_ZeroDepthDoesNothing(t *testing.T) {
	s := bibliotesting.SetupTestStore(t)
	oa := enrich.NewOpenAlexSource(enrich.OpenAlexConfig{})
	expander := New(s, oa)

	opts := DefaultOptions()
	opts.RelatedDepth = 0
	summary, err := expander.ExpandWork(context.Background(), "W1", []string{"W2"}, "", opts, nil)
	require.NoError(t, err)
	require.Zero(t, summary.StubsInserted)
}

func TestExpandWork_CancellationStopsEarly(t *testing.T) {
	s := bibliotesting.SetupTestStore(t)
	oa := enrich.NewOpenAlexSource(enrich.OpenAlexConfig{})
	expander := New(s, oa)

	calls := 0
	cancelled := func() bool {
		calls++
		return calls > 1
	}

	summary, err := expander.ExpandWork(context.Background(), "W1", []string{"W2", "W3", "W4"}, "", DefaultOptions(), cancelled)
	require.NoError(t, err)
	require.Equal(t, 1, summary.StubsInserted)
}

func TestExpandWork_DuplicateStubRejectedButEdgeStillRecorded(t *testing.T) {
	s := bibliotesting.SetupTestStore(t)
	oa := enrich.NewOpenAlexSource(enrich.OpenAlexConfig{})
	expander := New(s, oa)

	_, err := expander.ExpandWork(context.Background(), "W1", []string{"W2"}, "", DefaultOptions(), nil)
	require.NoError(t, err)

	summary, err := expander.ExpandWork(context.Background(), "W5", []string{"W2"}, "", DefaultOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.StubsRejected)
	require.Equal(t, 1, summary.EdgesRecorded)
}
