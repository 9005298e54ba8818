// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/biblio/pkg/store"
)

// ProjectConfig holds configuration for initializing a project.
type ProjectConfig struct {
	// ProjectID is the logical project identifier.
	ProjectID string

	// DataDir is the directory holding the catalog database.
	// Defaults to ~/.biblio/data/<project_id>
	DataDir string

	// PDFLibraryDir is where downloaded PDFs are stored (§6 "Artifact
	// layout"). Defaults to DataDir/pdf_library.
	PDFLibraryDir string
}

// ProjectInfo holds information about an initialized project.
type ProjectInfo struct {
	ProjectID     string
	DataDir       string
	CatalogPath   string
	PDFLibraryDir string
}

func (c *ProjectConfig) applyDefaults() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home dir: %w", err)
		}
		c.DataDir = filepath.Join(homeDir, ".biblio", "data", c.ProjectID)
	}
	if c.PDFLibraryDir == "" {
		c.PDFLibraryDir = filepath.Join(c.DataDir, "pdf_library")
	}
	return nil
}

func catalogPath(dataDir string) string {
	return filepath.Join(dataDir, "catalog.db")
}

// InitProject initializes a new biblio project: a SQLite catalog database
// plus a PDF library directory (§6). Idempotent — calling it again against
// an existing project just re-runs EnsureSchema.
func InitProject(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	logger.Info("bootstrap.project.init.start",
		"project_id", config.ProjectID,
		"data_dir", config.DataDir,
	)

	if err := os.MkdirAll(config.PDFLibraryDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pdf library dir: %w", err)
	}

	s, err := store.Open(store.Config{Path: catalogPath(config.DataDir)})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.EnsureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info("bootstrap.project.init.success",
		"project_id", config.ProjectID,
		"data_dir", config.DataDir,
	)

	return &ProjectInfo{
		ProjectID:     config.ProjectID,
		DataDir:       config.DataDir,
		CatalogPath:   catalogPath(config.DataDir),
		PDFLibraryDir: config.PDFLibraryDir,
	}, nil
}

// OpenProject opens an existing project's catalog store.
func OpenProject(config ProjectConfig, logger *slog.Logger) (*store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("project not found: %s (run 'biblio init' first)", config.DataDir)
	}

	logger.Debug("bootstrap.project.open",
		"project_id", config.ProjectID,
		"data_dir", config.DataDir,
	)

	s, err := store.Open(store.Config{Path: catalogPath(config.DataDir)})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return s, nil
}

// ResetProject deletes a project's catalog database, leaving the PDF
// library directory untouched (§C.3 — no automatic file deletion).
func ResetProject(config ProjectConfig) (*ProjectInfo, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("project not found: %s", config.DataDir)
	}

	path := catalogPath(config.DataDir)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove catalog: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}

	return &ProjectInfo{
		ProjectID:     config.ProjectID,
		DataDir:       config.DataDir,
		CatalogPath:   path,
		PDFLibraryDir: config.PDFLibraryDir,
	}, nil
}

// ListProjects returns the project IDs found under the default data
// directory.
func ListProjects() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}

	dataDir := filepath.Join(homeDir, ".biblio", "data")
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}

	return projects, nil
}
