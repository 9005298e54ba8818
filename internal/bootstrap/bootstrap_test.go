// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitProject_CreatesCatalogAndPDFLibrary(t *testing.T) {
	dataDir := t.TempDir()

	info, err := InitProject(ProjectConfig{ProjectID: "demo", DataDir: dataDir}, nil)
	require.NoError(t, err)
	require.Equal(t, "demo", info.ProjectID)
	require.FileExists(t, info.CatalogPath)
	require.DirExists(t, info.PDFLibraryDir)
	require.Equal(t, filepath.Join(dataDir, "pdf_library"), info.PDFLibraryDir)
}

func TestInitProject_RequiresProjectID(t *testing.T) {
	_, err := InitProject(ProjectConfig{DataDir: t.TempDir()}, nil)
	require.Error(t, err)
}

func TestInitProject_IsIdempotent(t *testing.T) {
	dataDir := t.TempDir()

	_, err := InitProject(ProjectConfig{ProjectID: "demo", DataDir: dataDir}, nil)
	require.NoError(t, err)
	_, err = InitProject(ProjectConfig{ProjectID: "demo", DataDir: dataDir}, nil)
	require.NoError(t, err)
}

func TestOpenProject_FailsWhenNotInitialized(t *testing.T) {
	_, err := OpenProject(ProjectConfig{ProjectID: "missing", DataDir: t.TempDir() + "/does-not-exist"}, nil)
	require.Error(t, err)
}

func TestOpenProject_OpensAnInitializedProject(t *testing.T) {
	dataDir := t.TempDir()
	_, err := InitProject(ProjectConfig{ProjectID: "demo", DataDir: dataDir}, nil)
	require.NoError(t, err)

	s, err := OpenProject(ProjectConfig{ProjectID: "demo", DataDir: dataDir}, nil)
	require.NoError(t, err)
	defer s.Close()

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	require.Zero(t, counts.Raw)
}

func TestListProjects_ReturnsDirectoryNamesUnderDataRoot(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dataDir := filepath.Join(home, ".biblio", "data", "alpha")
	_, err := InitProject(ProjectConfig{ProjectID: "alpha", DataDir: dataDir}, nil)
	require.NoError(t, err)

	projects, err := ListProjects()
	require.NoError(t, err)
	require.Contains(t, projects, "alpha")
}
