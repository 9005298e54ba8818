// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads a project's .biblio/project.yaml (§A.3): storage
// path, default corpus, per-endpoint rate limits, retry policy defaults,
// the PDF library directory, and OpenAlex/Crossref politeness identifiers.
//
// Load/Save/DefaultConfig and the environment-override pass follow the
// shape used for YAML-backed project configuration elsewhere in the
// retrieval pack (return defaults when the file is absent, unmarshal over
// the defaults when present, then let environment variables take the final
// word) rather than the teacher's own config loading, which the teacher
// does not do at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig configures one external endpoint's rate limiter (§4.5,
// pkg/ratelimit.Config).
type RateLimitConfig struct {
	RequestsPerMinute    int `yaml:"requests_per_minute"`
	InputTokensPerMinute int `yaml:"input_tokens_per_minute"`
	MaxConcurrent        int `yaml:"max_concurrent"`
}

// RetryConfig holds a backoff policy (§9 "Retries with sleep") that is
// loaded from and saved to project.yaml. No code reads it at run time:
// pkg/enrich's OpenAlex and Crossref sources use a fixed policy of at most
// 3 retries on cenkalti/backoff's default exponential schedule.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelay   string  `yaml:"base_delay"`
	MaxDelay    string  `yaml:"max_delay"`
	Jitter      float64 `yaml:"jitter"`
}

// BatchConfig holds default batch sizes (§5 backpressure defaults) that are
// loaded from and saved to project.yaml. enrich-batch and download-batch do
// not read it; their --limit defaults are pkg/orchestrator's
// DefaultEnrichBatchSize and DefaultDownloadBatchSize.
type BatchConfig struct {
	EnrichBatchSize   int `yaml:"enrich_batch_size"`
	DownloadBatchSize int `yaml:"download_batch_size"`
}

// Config is the parsed contents of .biblio/project.yaml.
type Config struct {
	StoragePath   string `yaml:"storage_path"`
	DefaultCorpus string `yaml:"default_corpus"`
	PDFLibrary    string `yaml:"pdf_library"`

	OpenAlexMailto string `yaml:"openalex_mailto"`
	CrossrefMailto string `yaml:"crossref_mailto"`

	RateLimits map[string]RateLimitConfig `yaml:"rate_limits"`
	Retry      RetryConfig                `yaml:"retry"`
	Batch      BatchConfig                `yaml:"batch"`
}

// DefaultConfig returns the configuration used when no project.yaml exists
// yet, or to fill in fields a partial file leaves unset.
func DefaultConfig() *Config {
	return &Config{
		StoragePath:   "catalog.db",
		DefaultCorpus: "",
		PDFLibrary:    "pdf_library",

		RateLimits: map[string]RateLimitConfig{
			"openalex": {RequestsPerMinute: 600, MaxConcurrent: 10},
			"crossref": {RequestsPerMinute: 300, MaxConcurrent: 5},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "500ms",
			MaxDelay:    "30s",
			Jitter:      0.2,
		},
		Batch: BatchConfig{
			EnrichBatchSize:   10,
			DownloadBatchSize: 8,
		},
	}
}

// Load reads project.yaml from path, returning DefaultConfig() with only
// the environment overrides applied if the file does not exist. Fields
// present in the file override the defaults; fields absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// RateLimit returns the configured rate limit for an endpoint name
// ("openalex", "crossref"), or the zero value if unconfigured.
func (c *Config) RateLimit(endpoint string) RateLimitConfig {
	return c.RateLimits[endpoint]
}

// applyEnvOverrides lets environment variables take the final word over
// both the defaults and the file contents, mirroring the politeness-
// identifier and path overrides of §A.3's "mailto/API-key identifiers".
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("BIBLIO_OPENALEX_MAILTO"); v != "" {
		c.OpenAlexMailto = v
	}
	if v := os.Getenv("BIBLIO_CROSSREF_MAILTO"); v != "" {
		c.CrossrefMailto = v
	}
	if v := os.Getenv("BIBLIO_STORAGE_PATH"); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv("BIBLIO_PDF_LIBRARY"); v != "" {
		c.PDFLibrary = v
	}
}
