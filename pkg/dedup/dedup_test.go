// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package dedup

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

	for _, table := range StageTables {
		_, err := db.Exec(`CREATE TABLE ` + table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			normalized_doi TEXT,
			openalex_id TEXT,
			normalized_title TEXT,
			normalized_authors TEXT,
			year INTEGER
		)`)
		require.NoError(t, err)
	}
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
	_, err = db.Exec(`CREATE TABLE merge_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		incoming_fingerprint TEXT NOT NULL,
		matched_table TEXT NOT NULL,
		matched_id INTEGER NOT NULL,
		matched_field TEXT NOT NULL,
		action TEXT NOT NULL
	)`)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestResolve_DOIWins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO enriched_references (normalized_doi) VALUES (?)`, "10.1017/cbo9780511613807.002")
	require.NoError(t, err)

	m, err := Resolve(ctx, db, Candidate{NormalizedDOI: "10.1017/cbo9780511613807.002"})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, MatchFieldDOI, m.Field)
	require.Equal(t, "enriched_references", m.Table)
}

func TestResolve_NoMatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m, err := Resolve(ctx, db, Candidate{NormalizedDOI: "10.1/none"})
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestResolve_TitleAuthorYearTriple(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO raw_references (normalized_title, normalized_authors, year) VALUES (?, ?, ?)`,
		"thenatureofthefirm", `["rhcoase"]`, 1937)
	require.NoError(t, err)

	year := 1937
	m, err := Resolve(ctx, db, Candidate{
		NormalizedTitle:   "thenatureofthefirm",
		NormalizedAuthors: `["rhcoase"]`,
		Year:              &year,
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, MatchFieldTitleAuthorYear, m.Field)
}

func TestResolve_AliasYearTolerance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO alias_index (work_table, work_id, alias_title_normalized, alias_year, relationship_type) VALUES (?, ?, ?, ?, ?)`,
		"enriched_references", 7, "translatedtitle", 1950, "translation")
	require.NoError(t, err)

	year := 1951
	m, err := Resolve(ctx, db, Candidate{NormalizedTitle: "translatedtitle", Year: &year})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, MatchFieldAliasTitleYear, m.Field)
	require.Equal(t, int64(7), m.ID)
}

func TestWriteMergeLogEntry(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := WriteMergeLogEntry(ctx, db, 1700000000, "fingerprint", Match{Table: "raw_references", ID: 1, Field: MatchFieldDOI}, ActionRejected)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM merge_log`))
	require.Equal(t, 1, count)
}
