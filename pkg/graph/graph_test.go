// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package graph

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE citation_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_openalex_id TEXT NOT NULL,
		target_openalex_id TEXT NOT NULL,
		relationship_type TEXT NOT NULL,
		UNIQUE(source_openalex_id, target_openalex_id, relationship_type)
	)`)
	require.NoError(t, err)

	for _, table := range []string{"enriched_references", "downloaded_references"} {
		_, err := db.Exec(`CREATE TABLE ` + table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT,
			year INTEGER,
			corpus_id INTEGER,
			openalex_id TEXT,
			source_work_openalex_id TEXT NOT NULL DEFAULT '',
			pending_edge_relationship TEXT NOT NULL DEFAULT ''
		)`)
		require.NoError(t, err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordEdges_IgnoresDuplicates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := RecordEdges(ctx, db, "W1", []string{"W2", "W3"}, RelationReferences)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n2, err := RecordEdges(ctx, db, "W1", []string{"W2"}, RelationReferences)
	require.NoError(t, err)
	require.Equal(t, 0, n2)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM citation_edges`))
	require.Equal(t, 2, count)
}

func TestBackfillEdges_MaterializesPendingEdges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO enriched_references (title, openalex_id, source_work_openalex_id, pending_edge_relationship)
		VALUES (?, ?, ?, ?)`, "Target Work", "W200", "W100", RelationReferences)
	require.NoError(t, err)

	summary, err := BackfillEdges(ctx, db, []string{"enriched_references", "downloaded_references"}, 0, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.RowsSeen)
	require.Equal(t, 1, summary.EdgesInserted)
	require.Equal(t, 0, summary.EdgesSkipped)

	var source, target, relation string
	require.NoError(t, db.QueryRow(`SELECT source_openalex_id, target_openalex_id, relationship_type FROM citation_edges`).Scan(&source, &target, &relation))
	require.Equal(t, "W100", source)
	require.Equal(t, "W200", target)
	require.Equal(t, RelationReferences, relation)

	var pending string
	require.NoError(t, db.Get(&pending, `SELECT pending_edge_relationship FROM enriched_references WHERE openalex_id = 'W200'`))
	require.Empty(t, pending)
}

func TestBackfillEdges_DryRunDoesNotInsertOrClear(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO enriched_references (title, openalex_id, source_work_openalex_id, pending_edge_relationship)
		VALUES (?, ?, ?, ?)`, "Target Work", "W200", "W100", RelationReferences)
	require.NoError(t, err)

	summary, err := BackfillEdges(ctx, db, []string{"enriched_references"}, 0, true)
	require.NoError(t, err)
	require.Equal(t, 1, summary.EdgesInserted)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM citation_edges`))
	require.Zero(t, count)
}

func TestGraphSlice_ReturnsConnectedNodesAndEdges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := RecordEdges(ctx, db, "W1", []string{"W2", "W3"}, RelationReferences)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO enriched_references (title, openalex_id) VALUES (?, ?), (?, ?), (?, ?)`,
		"Work One", "W1", "Work Two", "W2", "Work Three", "W3")
	require.NoError(t, err)

	nodes, edges, err := GraphSlice(ctx, db, SliceFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	require.Len(t, nodes, 3)
}
