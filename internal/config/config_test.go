// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "project.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "catalog.db", cfg.StoragePath)
	assert.Equal(t, 10, cfg.Batch.EnrichBatchSize)
	assert.Equal(t, 8, cfg.Batch.DownloadBatchSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".biblio", "project.yaml")

	cfg := DefaultConfig()
	cfg.DefaultCorpus = "economics"
	cfg.OpenAlexMailto = "research@example.com"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "economics", loaded.DefaultCorpus)
	assert.Equal(t, "research@example.com", loaded.OpenAlexMailto)
}

func TestLoad_PartialFileKeepsDefaultsForUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_corpus: physics\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "physics", cfg.DefaultCorpus)
	assert.Equal(t, "catalog.db", cfg.StoragePath)
	assert.Equal(t, 10, cfg.Batch.EnrichBatchSize)
}

func TestLoad_EnvOverridesMailto(t *testing.T) {
	t.Setenv("BIBLIO_OPENALEX_MAILTO", "override@example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "project.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "override@example.com", cfg.OpenAlexMailto)
}

func TestRateLimit_ReturnsConfiguredEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	rl := cfg.RateLimit("openalex")
	assert.Equal(t, 600, rl.RequestsPerMinute)
}

func TestRateLimit_UnknownEndpointReturnsZeroValue(t *testing.T) {
	cfg := DefaultConfig()
	rl := cfg.RateLimit("unknown")
	assert.Equal(t, 0, rl.RequestsPerMinute)
}
