// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package alias implements the alias index (C4): known-equivalent
// titles/years (translations, reprints) keyed to a canonical row. The dedup
// resolver consults it when direct identifier keys miss (§4.3 step 4).
package alias

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Relationship types (§4.4). The resolver treats all of these as
// dedup-equivalent.
const (
	RelationTranslation = "translation"
	RelationReprint     = "reprint"
	RelationPreprintOf  = "preprint_of"
	RelationErrataOf    = "errata_of"
	RelationOther       = "other"
)

// Executor is the subset of *sqlx.DB / *sqlx.Tx this package needs, letting
// callers run alias operations inside their own transaction (the resolver
// must see alias lookups and the subsequent insert as one atomic unit).
type Executor interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
}

// Match is a row the alias index considers equivalent to a lookup key.
type Match struct {
	WorkTable string
	WorkID    int64
}

// Add records an alias equivalence for a canonical row.
func Add(ctx context.Context, ex Executor, workTable string, workID int64, aliasTitleNormalized string, aliasYear *int, aliasLanguage, relationshipType string) error {
	_, err := sqlx.ExecContext(ctx, ex, `
		INSERT INTO alias_index (work_table, work_id, alias_title_normalized, alias_year, alias_language, relationship_type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		workTable, workID, aliasTitleNormalized, aliasYear, aliasLanguage, relationshipType,
	)
	if err != nil {
		return fmt.Errorf("add alias: %w", err)
	}
	return nil
}

// LookupByAlias returns every (work_table, work_id) whose alias matches the
// normalized title and whose recorded alias_year is within ±1 of year (or
// has no recorded year at all) — the publication-year drift tolerance
// translations and reprints need (§4.3 step 4, §4.4, P12).
func LookupByAlias(ctx context.Context, ex Executor, normalizedTitle string, year int) ([]Match, error) {
	rows, err := ex.QueryxContext(ctx, `
		SELECT work_table, work_id
		FROM alias_index
		WHERE alias_title_normalized = ?
		AND (alias_year IS NULL OR alias_year BETWEEN ? AND ?)`,
		normalizedTitle, year-1, year+1,
	)
	if err != nil {
		return nil, fmt.Errorf("lookup alias: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.WorkTable, &m.WorkID); err != nil {
			return nil, fmt.Errorf("scan alias row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
