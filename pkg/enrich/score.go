// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package enrich

import (
	"strings"

	"github.com/agext/levenshtein"
)

var fuzzyParams = levenshtein.NewParams()

// ratio returns a 0-100 similarity score between two strings, the same
// scale rapidfuzz's fuzz.ratio uses (the scoring thresholds in §4.6 are
// expressed on that scale).
func ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Match(a, b, fuzzyParams) * 100
}

// partialRatio approximates rapidfuzz's fuzz.partial_ratio: the best
// similarity of the shorter string against any substring window of the
// longer one, so "j rawls" scores well against "john rawls".
func partialRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if len(shorter) >= len(longer) {
		return ratio(shorter, longer)
	}

	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := longer[i : i+len(shorter)]
		if score := ratio(shorter, window); score > best {
			best = score
		}
	}

	tokens := strings.Fields(longer)
	for _, tok := range tokens {
		if score := ratio(shorter, tok); score > best {
			best = score
		}
	}

	return best
}
