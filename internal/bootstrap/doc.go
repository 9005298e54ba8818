// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package bootstrap handles biblio project initialization and setup.
//
// This internal package provides the core initialization logic for biblio
// projects: it opens (creating if necessary) a SQLite catalog database with
// the required schema, and ensures the PDF library directory exists.
//
// # Initialization Workflow
//
//	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{
//	    ProjectID: "myproject",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Project initialized at: %s\n", info.DataDir)
//
//	// Later, open the project for queries
//	s, err := bootstrap.OpenProject(bootstrap.ProjectConfig{
//	    ProjectID: "myproject",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
// # Idempotency
//
// InitProject is idempotent: calling it multiple times against the same
// project is safe, since EnsureSchema only ever creates tables and indexes
// that don't already exist.
//
// # Configuration
//
//   - ProjectID: required, the logical project identifier.
//   - DataDir: optional, defaults to ~/.biblio/data/<project_id>.
//   - PDFLibraryDir: optional, defaults to DataDir/pdf_library.
//
// # Project Discovery
//
//	projects, err := bootstrap.ListProjects()
//	for _, id := range projects {
//	    fmt.Println(id)
//	}
package bootstrap
