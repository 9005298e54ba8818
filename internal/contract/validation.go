// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"os"
	"strconv"
)

const (
	// DefaultSoftLimitBytes is the baseline soft limit for ingest payloads.
	DefaultSoftLimitBytes = 64 << 20 // 64 MiB

	// RequestIDMaxBytes is the maximum length for a request identifier.
	RequestIDMaxBytes = 128
)

// SoftLimitBytes returns the effective soft limit for an ingest payload.
// Controlled via env BIBLIO_SOFT_LIMIT_BYTES; falls back to DefaultSoftLimitBytes.
func SoftLimitBytes() int {
	if v := os.Getenv("BIBLIO_SOFT_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSoftLimitBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateBatchScript performs basic size validation on an ingest payload
// (a bibtex file body or a PDF extractor's raw JSON output) before parsing.
func ValidateBatchScript(payload string) *ValidationResult {
	if len(payload) > SoftLimitBytes() {
		return &ValidationResult{
			OK:      false,
			Message: "ingest payload exceeds soft limit",
		}
	}
	return &ValidationResult{OK: true}
}
