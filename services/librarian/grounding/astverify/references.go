// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package astverify

import (
	"regexp"
	"sort"
	"strconv"
)

const sourceExt = `go|pyi|py|jsx|json|js|mjs|tsx|ts|java|kt|rs|rb|cpp|cc|cs|c|hpp|h|swift|md|yaml|yml|toml`

var (
	// lineCitationBracketed matches [file.go:42] or [file.go:42-50].
	// Group 1: file path, Group 3: start line.
	lineCitationBracketed = regexp.MustCompile(
		`\[([^\[\]:\s]+\.(` + sourceExt + `)):(\d+)(?:-(\d+))?\]`,
	)

	// lineCitationParenthesized matches (file.go:42) or (file.go:42-50).
	// Group 1: file path, Group 3: start line.
	lineCitationParenthesized = regexp.MustCompile(
		`\(([a-zA-Z0-9_\-./]+\.(` + sourceExt + `)):(\d+)(?:-(\d+))?\)`,
	)

	// lineCitationUnbracketed matches file.go:42 not preceded by [ or (.
	// Group 1: file path, Group 3: start line.
	lineCitationUnbracketed = regexp.MustCompile(
		`(?:^|[^\[(\w./-])([a-zA-Z0-9_\-./]+\.(` + sourceExt + `)):(\d+)(?:-(\d+))?`,
	)

	// lineCitationProse matches "line 42 of file.go" or "lines 42-50 in file.go".
	// Group 1: start line, Group 3: file path.
	lineCitationProse = regexp.MustCompile(
		`(?i)(?:at\s+)?lines?\s+(\d+)(?:\s*[-–]\s*(\d+))?\s+(?:of|in)\s+` + "`?" + `([a-zA-Z0-9_\-./]+\.(` + sourceExt + `))`,
	)
)

// ExtractLineReferences finds line citations in free text. Ranges cite
// their first line. Each file:line pair is returned once, in order of
// first appearance.
func ExtractLineReferences(text string) []LineReference {
	type citation struct {
		re         *regexp.Regexp
		path, line int
	}
	forms := []citation{
		{lineCitationBracketed, 1, 3},
		{lineCitationParenthesized, 1, 3},
		{lineCitationUnbracketed, 1, 3},
		{lineCitationProse, 3, 1},
	}

	type found struct {
		pos int
		ref LineReference
	}
	seen := make(map[string]bool)
	var all []found
	for _, f := range forms {
		for _, idx := range f.re.FindAllStringSubmatchIndex(text, -1) {
			path := text[idx[2*f.path]:idx[2*f.path+1]]
			lineStr := text[idx[2*f.line]:idx[2*f.line+1]]
			line, err := strconv.Atoi(lineStr)
			if err != nil {
				continue
			}
			key := path + ":" + lineStr
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, found{pos: idx[0], ref: LineReference{FilePath: path, LineNumber: line}})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].pos < all[j].pos })
	refs := make([]LineReference, 0, len(all))
	for _, f := range all {
		refs = append(refs, f.ref)
	}
	return refs
}
