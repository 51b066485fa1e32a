// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import "strings"

// HedgeWords are the qualifiers recognized as existing hedges.
var HedgeWords = []string{
	"may", "might", "possibly", "appears to", "seems to", "likely",
	"perhaps", "probably", "could",
}

// NegativePhrases mark an answer that failed to confirm its claim.
var NegativePhrases = []string{
	"not confirmed", "unable to", "no supporting", "could not", "cannot",
	"not found", "no evidence", "does not",
}

// ContainsHedge reports whether text already carries a hedge.
func ContainsHedge(text string) bool {
	for _, h := range HedgeWords {
		if ContainsWord(text, h) {
			return true
		}
	}
	return false
}

// ContainsNegative reports whether text contains negative-result phrasing.
func ContainsNegative(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range NegativePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
