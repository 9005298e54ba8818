// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"io"

	"github.com/kraklabs/biblio/internal/output"
)

// printf writes a formatted message to w, ignoring the rare encoding
// error (stderr/stdout writes practically never fail).
func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// jsonErrorf formats a message and emits it as {"error": "..."} JSON to
// stderr, for --json callers that hit a fatal error.
func jsonErrorf(format string, args ...any) error {
	return output.JSONError(fmt.Errorf(format, args...))
}

// outputJSON writes data as pretty-printed JSON to stdout.
func outputJSON(data any) error {
	return output.JSON(data)
}
