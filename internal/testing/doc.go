// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package testing provides test helpers for biblio package tests.
//
// This package wraps an in-memory catalog store with fixture builders
// for seeding raw/enriched/downloaded references.
//
// # Quick Start
//
// Use SetupTestStore to create an in-memory catalog store with schema
// applied:
//
//	func TestMyFeature(t *testing.T) {
//	    s := testing.SetupTestStore(t)
//
//	    id := testing.InsertRawFixture(t, s, "A Treatise on Money")
//
//	    require.Equal(t, 1, testing.CountRows(t, s, store.TableRaw))
//	}
//
// # Seeding Test Data
//
// The package provides helpers for inserting common test entities:
//   - InsertRawFixture: insert a raw reference
//   - InsertEnrichedFixture: promote a fresh raw row straight to enriched
//   - EnqueueFixture: enqueue an enriched row for download
//
// # Querying Test Data
//
// CountRows asserts the population of a stage table by name.
package testing
