// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package graph implements the citation-edge recorder (C9): an append-only
// edge table maintained alongside enrichment, a backfill maintenance
// operation, and a read-only BFS slice for export (§4.9).
package graph

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Edge relationship kinds (§3 merge log + §4.9).
const (
	RelationReferences = "references"
	RelationCitedBy    = "cited_by"
)

// Executor is the subset of *sqlx.Tx or *sqlx.DB this package needs.
type Executor interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
}

// RecordEdges inserts (source, target, kind) triples, ignoring duplicates
// via the table's UNIQUE constraint (§4.9 record_edges). Returns the number
// of rows actually inserted (duplicates don't count).
func RecordEdges(ctx context.Context, ex Executor, sourceOpenAlexID string, targets []string, kind string) (int, error) {
	if sourceOpenAlexID == "" || len(targets) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, target := range targets {
		if target == "" {
			continue
		}
		res, err := sqlx.ExecContext(ctx, ex, `
			INSERT OR IGNORE INTO citation_edges (source_openalex_id, target_openalex_id, relationship_type)
			VALUES (?, ?, ?)`,
			sourceOpenAlexID, target, kind,
		)
		if err != nil {
			return inserted, fmt.Errorf("record edge %s->%s: %w", sourceOpenAlexID, target, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// BackfillSummary reports the outcome of BackfillEdges, matching the
// {rows_seen, edges_inserted, edges_skipped} shape used by this
// codebase's maintenance tooling.
type BackfillSummary struct {
	RowsSeen      int `json:"rows_seen"`
	EdgesInserted int `json:"edges_inserted"`
	EdgesSkipped  int `json:"edges_skipped"`
}

// pendingEdgeRow is the subset of columns BackfillEdges needs from
// enriched/downloaded.
type pendingEdgeRow struct {
	ID                      int64  `db:"id"`
	OpenAlexID              string `db:"openalex_id"`
	SourceWorkOpenAlexID    string `db:"source_work_openalex_id"`
	PendingEdgeRelationship string `db:"pending_edge_relationship"`
}

// BackfillEdges materializes citation_edges for rows that carry a
// source_work_openalex_id + pending_edge_relationship but have no
// corresponding edge row yet — the situation left behind when a corpus is
// merged in with relationship metadata attached but edges not yet recorded
// (§4.9 "Backfill operation"). dryRun estimates without inserting or
// clearing the pending markers.
func BackfillEdges(ctx context.Context, db *sqlx.DB, tables []string, limit int, dryRun bool) (BackfillSummary, error) {
	var summary BackfillSummary

	for _, table := range tables {
		query := fmt.Sprintf(`SELECT id, openalex_id, source_work_openalex_id, pending_edge_relationship
			FROM %s WHERE pending_edge_relationship != '' AND source_work_openalex_id != '' AND openalex_id != ''`, table)
		if limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", limit)
		}

		var rows []pendingEdgeRow
		if err := db.SelectContext(ctx, &rows, query); err != nil {
			return summary, fmt.Errorf("scan %s for pending edges: %w", table, err)
		}

		for _, row := range rows {
			summary.RowsSeen++

			if dryRun {
				var exists int
				err := db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM citation_edges
					WHERE source_openalex_id = ? AND target_openalex_id = ? AND relationship_type = ?`,
					row.SourceWorkOpenAlexID, row.OpenAlexID, row.PendingEdgeRelationship)
				if err != nil {
					return summary, fmt.Errorf("check existing edge: %w", err)
				}
				if exists > 0 {
					summary.EdgesSkipped++
				} else {
					summary.EdgesInserted++
				}
				continue
			}

			n, err := RecordEdges(ctx, db, row.SourceWorkOpenAlexID, []string{row.OpenAlexID}, row.PendingEdgeRelationship)
			if err != nil {
				return summary, err
			}
			if n == 0 {
				summary.EdgesSkipped++
			} else {
				summary.EdgesInserted++
			}

			if _, err := db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET pending_edge_relationship = '', source_work_openalex_id = '' WHERE id = ?`, table), row.ID); err != nil {
				return summary, fmt.Errorf("clear pending marker on %s.id=%d: %w", table, row.ID, err)
			}
		}
	}

	return summary, nil
}

// Node and Edge are the shapes returned by GraphSlice.
type Node struct {
	OpenAlexID string `db:"openalex_id"`
	Title      string `db:"title"`
	Year       *int   `db:"year"`
}

type Edge struct {
	SourceOpenAlexID string `db:"source_openalex_id"`
	TargetOpenAlexID string `db:"target_openalex_id"`
	RelationshipType string `db:"relationship_type"`
}

// SliceFilter narrows GraphSlice's retrieval (§4.9 graph_slice).
type SliceFilter struct {
	Limit            int
	RelationshipType string // empty = any
	Year             *int   // empty = any
	CorpusID         *int64 // empty = any
}

// GraphSlice returns a bounded citation-graph neighborhood via seeded BFS:
// start from the highest-degree nodes and expand outward until Limit nodes
// have been collected (§4.9 "seeded-BFS expansion from the highest-degree
// nodes up to limit"). RelationshipType restricts the seeds and the edges
// followed; Year and CorpusID only restrict which visited nodes are returned,
// so returned edges may reference nodes absent from the node list.
func GraphSlice(ctx context.Context, db *sqlx.DB, filter SliceFilter) ([]Node, []Edge, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	edgeWhere := "1=1"
	var edgeArgs []any
	if filter.RelationshipType != "" {
		edgeWhere += " AND relationship_type = ?"
		edgeArgs = append(edgeArgs, filter.RelationshipType)
	}

	seedQuery := fmt.Sprintf(`
		SELECT node, COUNT(*) AS degree FROM (
			SELECT source_openalex_id AS node FROM citation_edges WHERE %s
			UNION ALL
			SELECT target_openalex_id AS node FROM citation_edges WHERE %s
		) GROUP BY node ORDER BY degree DESC LIMIT ?`, edgeWhere, edgeWhere)

	var seeds []string
	seedArgs := append(append([]any{}, edgeArgs...), edgeArgs...)
	seedArgs = append(seedArgs, limit)
	rows, err := db.QueryxContext(ctx, seedQuery, seedArgs...)
	if err != nil {
		return nil, nil, fmt.Errorf("select seed nodes: %w", err)
	}
	for rows.Next() {
		var node string
		var degree int
		if err := rows.Scan(&node, &degree); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan seed node: %w", err)
		}
		seeds = append(seeds, node)
	}
	rows.Close()

	visited := make(map[string]bool)
	seenEdges := make(map[string]bool)
	var edges []Edge
	queue := append([]string(nil), seeds...)

	for len(queue) > 0 && len(visited) < limit {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true

		edgeRows, err := neighborEdges(ctx, db, node, edgeWhere, edgeArgs)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range edgeRows {
			key := e.SourceOpenAlexID + "\x00" + e.TargetOpenAlexID + "\x00" + e.RelationshipType
			if !seenEdges[key] {
				seenEdges[key] = true
				edges = append(edges, e)
			}
			other := e.TargetOpenAlexID
			if other == node {
				other = e.SourceOpenAlexID
			}
			if !visited[other] && len(visited) < limit {
				queue = append(queue, other)
			}
		}
	}

	nodes, err := resolveNodes(ctx, db, visited, filter)
	if err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}

func neighborEdges(ctx context.Context, db *sqlx.DB, node, edgeWhere string, edgeArgs []any) ([]Edge, error) {
	query := fmt.Sprintf(`SELECT source_openalex_id, target_openalex_id, relationship_type FROM citation_edges
		WHERE (source_openalex_id = ? OR target_openalex_id = ?) AND %s`, edgeWhere)
	args := append([]any{node, node}, edgeArgs...)

	var edges []Edge
	if err := db.SelectContext(ctx, &edges, query, args...); err != nil {
		return nil, fmt.Errorf("select neighbor edges for %s: %w", node, err)
	}
	return edges, nil
}

func resolveNodes(ctx context.Context, db *sqlx.DB, ids map[string]bool, filter SliceFilter) ([]Node, error) {
	nodes := make([]Node, 0, len(ids))
	for _, table := range []string{"enriched_references", "downloaded_references"} {
		if len(ids) == 0 {
			break
		}
		idList := make([]string, 0, len(ids))
		for id := range ids {
			idList = append(idList, id)
		}

		query := fmt.Sprintf(`SELECT openalex_id, title, year FROM %s WHERE openalex_id IN (?)`, table)
		if filter.Year != nil {
			query += fmt.Sprintf(" AND year = %d", *filter.Year)
		}
		if filter.CorpusID != nil {
			query += fmt.Sprintf(" AND corpus_id = %d", *filter.CorpusID)
		}

		q, args, err := sqlx.In(query, idList)
		if err != nil {
			return nil, fmt.Errorf("build node resolve query: %w", err)
		}
		q = db.Rebind(q)

		var found []Node
		if err := db.SelectContext(ctx, &found, q, args...); err != nil {
			return nil, fmt.Errorf("resolve nodes from %s: %w", table, err)
		}
		for _, n := range found {
			delete(ids, n.OpenAlexID)
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}
