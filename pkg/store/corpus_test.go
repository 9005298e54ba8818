// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorpus_CreatesThenReusesByName(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.EnsureCorpus(context.Background(), "economics", time.Now())
	require.NoError(t, err)
	assert.NotZero(t, id1)

	id2, err := s.EnsureCorpus(context.Background(), "economics", time.Now())
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestEnsureCorpus_DistinctNamesGetDistinctIDs(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.EnsureCorpus(context.Background(), "economics", time.Now())
	require.NoError(t, err)
	id2, err := s.EnsureCorpus(context.Background(), "physics", time.Now())
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestRecordIngestRun_ReturnsID(t *testing.T) {
	s := openTestStore(t)

	id, err := s.RecordIngestRun(context.Background(), IngestRun{Query: "monetary policy"}, time.Now())
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestAddToCorpus_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	corpusID, err := s.EnsureCorpus(context.Background(), "economics", time.Now())
	require.NoError(t, err)

	rawID, rej, err := s.InsertRaw(context.Background(), Reference{Title: "A Treatise on Money"}, nil, nil, time.Now())
	require.NoError(t, err)
	require.Nil(t, rej)

	require.NoError(t, s.AddToCorpus(context.Background(), corpusID, TableRaw, rawID))
	require.NoError(t, s.AddToCorpus(context.Background(), corpusID, TableRaw, rawID))

	var count int
	require.NoError(t, s.db.Get(&count, `SELECT COUNT(*) FROM corpus_items WHERE corpus_id = ?`, corpusID))
	assert.Equal(t, 1, count)
}
