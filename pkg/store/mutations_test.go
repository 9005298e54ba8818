// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func yearPtr(y int) *int { return &y }

func TestInsertRaw_RejectsDuplicateDOI(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	ref := Reference{Title: "The Nature of the Firm", Year: yearPtr(1937), DOI: "10.1111/j.1468-0335.1937.tb00002.x"}
	id1, rej1, err := s.InsertRaw(ctx, ref, []string{"Ronald H. Coase"}, nil, now)
	require.NoError(t, err)
	require.Nil(t, rej1)
	require.NotZero(t, id1)

	ref2 := Reference{Title: "The Nature of the Firm (reprint)", Year: yearPtr(1937), DOI: "https://doi.org/10.1111/J.1468-0335.1937.TB00002.X"}
	id2, rej2, err := s.InsertRaw(ctx, ref2, []string{"R. Coase"}, nil, now)
	require.NoError(t, err)
	require.Zero(t, id2)
	require.NotNil(t, rej2)
	require.Equal(t, TableRaw, rej2.Table)
	require.Equal(t, id1, rej2.ID)

	var count int
	require.NoError(t, s.db.Get(&count, `SELECT COUNT(*) FROM merge_log`))
	require.Equal(t, 1, count)
}

func TestInsertRaw_DistinctReferencesBothInsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	_, rej1, err := s.InsertRaw(ctx, Reference{Title: "A", Year: yearPtr(2001), DOI: "10.1/a"}, []string{"A. One"}, nil, now)
	require.NoError(t, err)
	require.Nil(t, rej1)

	_, rej2, err := s.InsertRaw(ctx, Reference{Title: "B", Year: yearPtr(2002), DOI: "10.1/b"}, []string{"B. Two"}, nil, now)
	require.NoError(t, err)
	require.Nil(t, rej2)

	var count int
	require.NoError(t, s.db.Get(&count, `SELECT COUNT(*) FROM `+TableRaw))
	require.Equal(t, 2, count)
}

func TestPromoteToEnriched_MovesRowAndDeletesRaw(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rawID, rej, err := s.InsertRaw(ctx, Reference{Title: "A Theory of Justice", Year: yearPtr(1971)}, []string{"John Rawls"}, nil, now)
	require.NoError(t, err)
	require.Nil(t, rej)

	enriched := Reference{Title: "A Theory of Justice", Year: yearPtr(1971), DOI: "10.2307/2025106", OpenAlexID: "W2020301"}
	enrichedID, rej2, err := s.PromoteToEnriched(ctx, rawID, enriched, []string{"John Rawls"}, nil, now)
	require.NoError(t, err)
	require.Nil(t, rej2)
	require.NotZero(t, enrichedID)

	var rawCount int
	require.NoError(t, s.db.Get(&rawCount, `SELECT COUNT(*) FROM `+TableRaw+` WHERE id = ?`, rawID))
	require.Equal(t, 0, rawCount)

	var state string
	require.NoError(t, s.db.Get(&state, `SELECT download_state FROM `+TableEnriched+` WHERE id = ?`, enrichedID))
	require.Equal(t, DownloadStateNone, state)
}

func TestFailEnrichment_MovesRowToFailedBucket(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rawID, _, err := s.InsertRaw(ctx, Reference{Title: "Untitled Draft"}, nil, nil, now)
	require.NoError(t, err)

	require.NoError(t, s.FailEnrichment(ctx, rawID, "no candidate found in any source", now))

	var rawCount int
	require.NoError(t, s.db.Get(&rawCount, `SELECT COUNT(*) FROM `+TableRaw))
	require.Equal(t, 0, rawCount)

	var reason string
	require.NoError(t, s.db.Get(&reason, `SELECT reason FROM `+TableFailedEnrichment+` WHERE id = ?`, rawID))
	require.Equal(t, "no candidate found in any source", reason)
}

func enrichedFixture(t *testing.T, s *Store, title string, now time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	rawID, _, err := s.InsertRaw(ctx, Reference{Title: title, Year: yearPtr(2020)}, []string{"Author"}, nil, now)
	require.NoError(t, err)
	enrichedID, rej, err := s.PromoteToEnriched(ctx, rawID, Reference{Title: title, Year: yearPtr(2020), OpenAlexID: "W" + title}, []string{"Author"}, nil, now)
	require.NoError(t, err)
	require.Nil(t, rej)
	return enrichedID
}

func TestClaimBatch_DisjointAcrossWorkers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	ids := make([]int64, 0, 4)
	for i := 0; i < 4; i++ {
		id := enrichedFixture(t, s, "Paper"+string(rune('A'+i)), now)
		_, err := s.EnqueueForDownload(ctx, id)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	batch1, err := s.ClaimBatch(ctx, nil, 2, "worker-1", 300, now)
	require.NoError(t, err)
	require.Len(t, batch1, 2)

	batch2, err := s.ClaimBatch(ctx, nil, 2, "worker-2", 300, now)
	require.NoError(t, err)
	require.Len(t, batch2, 2)

	seen := map[int64]bool{}
	for _, r := range append(batch1, batch2...) {
		require.False(t, seen[r.ID], "row %d claimed twice", r.ID)
		seen[r.ID] = true
	}
	require.Len(t, seen, 4)

	batch3, err := s.ClaimBatch(ctx, nil, 2, "worker-3", 300, now)
	require.NoError(t, err)
	require.Empty(t, batch3)
}

func TestCompleteDownloadSuccess_MovesRowToDownloaded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	id := enrichedFixture(t, s, "Paper", now)
	_, err := s.EnqueueForDownload(ctx, id)
	require.NoError(t, err)
	claimed, err := s.ClaimBatch(ctx, nil, 1, "worker-1", 300, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, s.CompleteDownloadSuccess(ctx, id, "/data/paper.pdf", "sha256:abc", "openalex", now))

	var enrichedCount int
	require.NoError(t, s.db.Get(&enrichedCount, `SELECT COUNT(*) FROM `+TableEnriched+` WHERE id = ?`, id))
	require.Equal(t, 0, enrichedCount)

	var state, path string
	require.NoError(t, s.db.Get(&state, `SELECT download_state FROM `+TableDownloaded+` WHERE id = ?`, id))
	require.Equal(t, DownloadStateSucceeded, state)
	require.NoError(t, s.db.Get(&path, `SELECT file_path FROM `+TableDownloaded+` WHERE id = ?`, id))
	require.Equal(t, "/data/paper.pdf", path)
}

func TestFailDownload_RequeuesUntilBudgetExhausted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	id := enrichedFixture(t, s, "Paper", now)
	_, err := s.EnqueueForDownload(ctx, id)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := s.ClaimBatch(ctx, nil, 1, "worker-1", 300, now)
		require.NoError(t, err)
		require.NoError(t, s.FailDownload(ctx, id, "connection reset", 3, now))

		var state string
		require.NoError(t, s.db.Get(&state, `SELECT download_state FROM `+TableEnriched+` WHERE id = ?`, id))
		require.Equal(t, DownloadStateQueued, state)
	}

	_, err = s.ClaimBatch(ctx, nil, 1, "worker-1", 300, now)
	require.NoError(t, err)
	require.NoError(t, s.FailDownload(ctx, id, "connection reset", 3, now))

	var enrichedCount int
	require.NoError(t, s.db.Get(&enrichedCount, `SELECT COUNT(*) FROM `+TableEnriched+` WHERE id = ?`, id))
	require.Equal(t, 0, enrichedCount)

	var reason string
	require.NoError(t, s.db.Get(&reason, `SELECT reason FROM `+TableFailedDownload+` WHERE id = ?`, id))
	require.Equal(t, "connection reset", reason)
}

func TestReleaseExpiredLeases_RequeuesOnlyExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	id1 := enrichedFixture(t, s, "Expired", now)
	id2 := enrichedFixture(t, s, "Fresh", now)
	_, err := s.EnqueueForDownload(ctx, id1)
	require.NoError(t, err)
	_, err = s.EnqueueForDownload(ctx, id2)
	require.NoError(t, err)

	_, err = s.ClaimBatch(ctx, nil, 1, "worker-1", 1, now)
	require.NoError(t, err)
	_, err = s.ClaimBatch(ctx, nil, 1, "worker-2", 3600, now)
	require.NoError(t, err)

	later := now.Add(10 * time.Second)
	released, err := s.ReleaseExpiredLeases(ctx, later)
	require.NoError(t, err)
	require.Equal(t, int64(1), released)

	var state1, state2 string
	require.NoError(t, s.db.Get(&state1, `SELECT download_state FROM `+TableEnriched+` WHERE id = ?`, id1))
	require.Equal(t, DownloadStateQueued, state1)
	require.NoError(t, s.db.Get(&state2, `SELECT download_state FROM `+TableEnriched+` WHERE id = ?`, id2))
	require.Equal(t, DownloadStateInProgress, state2)
}

func TestEnqueueForDownload_RejectsAlreadyQueued(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	id := enrichedFixture(t, s, "Paper", now)
	rej, err := s.EnqueueForDownload(ctx, id)
	require.NoError(t, err)
	require.Nil(t, rej)

	rej2, err := s.EnqueueForDownload(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rej2)
	require.Equal(t, "download_state", rej2.Field)
}
