// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package dedup implements the dedup resolver (C3): given a candidate
// reference, decide whether it collides with any existing record in any
// stage, and on collision record provenance in the merge log (§4.3).
//
// Resolve is designed to run inside the same transaction as the caller's
// insert (the stage store in pkg/store), so a lookup-then-insert race
// between two concurrent workers can never both decide "no match".
package dedup

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kraklabs/biblio/pkg/alias"
)

// StageTables lists the three tables a collision can occur against, in the
// order invariants I1-I3 apply to them.
var StageTables = []string{"raw_references", "enriched_references", "downloaded_references"}

// Candidate is the subset of a reference's fields the resolver needs.
type Candidate struct {
	NormalizedDOI     string
	OpenAlexID        string
	NormalizedTitle   string
	NormalizedAuthors string
	Year              *int
}

// MatchField names which rule fired.
const (
	MatchFieldDOI             = "doi"
	MatchFieldOpenAlexID      = "openalex_id"
	MatchFieldTitleAuthorYear = "title_authors_year"
	MatchFieldAliasTitleYear  = "alias_title_year"
)

// Match describes a found collision.
type Match struct {
	Table string
	ID    int64
	Field string
}

// Merge-log action values (§3 Merge log).
const (
	ActionRejected = "rejected"
	ActionPromoted = "promoted"
	ActionMerged   = "merged"
)

// Executor is the subset of *sqlx.Tx this package needs.
type Executor interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
}

// Resolve applies the resolution order from §4.3: normalized DOI, then
// OpenAlex id, then the (title, authors, year) triple, then the alias index
// with ±1 year tolerance. The first rule that fires wins; Resolve does not
// itself write the merge-log entry — see WriteMergeLogEntry, which the
// caller invokes once it knows the action (rejected/promoted/merged).
func Resolve(ctx context.Context, ex Executor, c Candidate) (*Match, error) {
	if c.NormalizedDOI != "" {
		if m, err := lookupColumn(ctx, ex, "normalized_doi", c.NormalizedDOI, MatchFieldDOI); err != nil {
			return nil, err
		} else if m != nil {
			return m, nil
		}
	}

	if c.OpenAlexID != "" {
		if m, err := lookupColumn(ctx, ex, "openalex_id", c.OpenAlexID, MatchFieldOpenAlexID); err != nil {
			return nil, err
		} else if m != nil {
			return m, nil
		}
	}

	if c.NormalizedTitle != "" && c.NormalizedAuthors != "" && c.Year != nil {
		if m, err := lookupTriple(ctx, ex, c); err != nil {
			return nil, err
		} else if m != nil {
			return m, nil
		}
	}

	if c.NormalizedTitle != "" && c.Year != nil {
		matches, err := alias.LookupByAlias(ctx, ex, c.NormalizedTitle, *c.Year)
		if err != nil {
			return nil, fmt.Errorf("alias lookup: %w", err)
		}
		if len(matches) > 0 {
			return &Match{Table: matches[0].WorkTable, ID: matches[0].WorkID, Field: MatchFieldAliasTitleYear}, nil
		}
	}

	return nil, nil
}

func lookupColumn(ctx context.Context, ex Executor, column, value, field string) (*Match, error) {
	for _, table := range StageTables {
		query := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ? LIMIT 1`, table, column)
		rows, err := ex.QueryxContext(ctx, query, value)
		if err != nil {
			return nil, fmt.Errorf("lookup %s in %s: %w", column, table, err)
		}
		var id int64
		found := rows.Next()
		if found {
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s match: %w", column, err)
			}
		}
		rows.Close()
		if found {
			return &Match{Table: table, ID: id, Field: field}, nil
		}
	}
	return nil, nil
}

func lookupTriple(ctx context.Context, ex Executor, c Candidate) (*Match, error) {
	for _, table := range StageTables {
		query := fmt.Sprintf(`SELECT id FROM %s WHERE normalized_title = ? AND normalized_authors = ? AND year = ? LIMIT 1`, table)
		rows, err := ex.QueryxContext(ctx, query, c.NormalizedTitle, c.NormalizedAuthors, *c.Year)
		if err != nil {
			return nil, fmt.Errorf("lookup triple in %s: %w", table, err)
		}
		var id int64
		found := rows.Next()
		if found {
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan triple match: %w", err)
			}
		}
		rows.Close()
		if found {
			return &Match{Table: table, ID: id, Field: MatchFieldTitleAuthorYear}, nil
		}
	}
	return nil, nil
}

// WriteMergeLogEntry appends an append-only merge-log row recording a dedup
// decision (§3 Merge log). createdAt is a unix timestamp supplied by the
// caller so this package never calls time.Now() itself.
func WriteMergeLogEntry(ctx context.Context, ex Executor, createdAt int64, incomingFingerprint string, m Match, action string) error {
	_, err := sqlx.ExecContext(ctx, ex, `
		INSERT INTO merge_log (created_at, incoming_fingerprint, matched_table, matched_id, matched_field, action)
		VALUES (?, ?, ?, ?, ?, ?)`,
		createdAt, incomingFingerprint, m.Table, m.ID, m.Field, action,
	)
	if err != nil {
		return fmt.Errorf("write merge log: %w", err)
	}
	return nil
}
