// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package alias

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
	_, err = db.Exec(`CREATE TABLE alias_index (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		work_table TEXT NOT NULL,
		work_id INTEGER NOT NULL,
		alias_title_normalized TEXT NOT NULL,
		alias_year INTEGER,
		alias_language TEXT,
		relationship_type TEXT NOT NULL
	)`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAddAndLookup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	year := 1937
	err := Add(ctx, db, "enriched_references", 42, "thenatureofthefirm", &year, "en", RelationTranslation)
	require.NoError(t, err)

	matches, err := LookupByAlias(ctx, db, "thenatureofthefirm", 1938)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, int64(42), matches[0].WorkID)

	_, err = LookupByAlias(ctx, db, "thenatureofthefirm", 1940)
	require.NoError(t, err)
}

func TestLookupByAlias_YearOutsideTolerance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	year := 1937
	require.NoError(t, Add(ctx, db, "enriched_references", 1, "title", &year, "en", RelationReprint))

	matches, err := LookupByAlias(ctx, db, "title", 1940)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestLookupByAlias_NilYearMatchesAnyYear(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, Add(ctx, db, "enriched_references", 1, "title", nil, "en", RelationOther))

	matches, err := LookupByAlias(ctx, db, "title", 2020)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
