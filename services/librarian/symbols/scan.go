// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"regexp"
	"strings"
)

// declarationRule matches one declaration form on a single line.
type declarationRule struct {
	kind    Kind
	pattern *regexp.Regexp
	// parent is the submatch index of the enclosing type, or 0.
	parent int
	name   int
}

// declarationRules are tried in order per line; the first match wins.
var declarationRules = []declarationRule{
	// Go
	{KindMethod, regexp.MustCompile(`^\s*func\s+\(\s*\w*\s*\*?(\w+)(?:\[[^\]]*\])?\s*\)\s*(\w+)\s*[(\[]`), 1, 2},
	{KindFunction, regexp.MustCompile(`^\s*func\s+(\w+)\s*[(\[]`), 0, 1},
	{KindClass, regexp.MustCompile(`^\s*type\s+(\w+)(?:\[[^\]]*\])?\s+struct\b`), 0, 1},
	{KindInterface, regexp.MustCompile(`^\s*type\s+(\w+)(?:\[[^\]]*\])?\s+interface\b`), 0, 1},
	{KindType, regexp.MustCompile(`^\s*type\s+(\w+)\s+\w`), 0, 1},
	// Python
	{KindFunction, regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(`), 0, 1},
	{KindMethod, regexp.MustCompile(`^\s+(?:async\s+)?def\s+(\w+)\s*\(`), 0, 1},
	{KindClass, regexp.MustCompile(`^\s*class\s+(\w+)\s*[(:]`), 0, 1},
	// JavaScript, TypeScript, Java, C#, Kotlin
	{KindInterface, regexp.MustCompile(`^\s*(?:export\s+)?(?:public\s+|private\s+|protected\s+)?interface\s+(\w+)`), 0, 1},
	{KindClass, regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:public\s+|private\s+|protected\s+)?(?:abstract\s+|final\s+|static\s+)*(?:class|struct|enum|record)\s+(\w+)`), 0, 1},
	{KindFunction, regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\*?\s+(\w+)`), 0, 1},
	{KindFunction, regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`), 0, 1},
	{KindType, regexp.MustCompile(`^\s*(?:export\s+)?type\s+(\w+)\s*(?:<[^>]*>)?\s*=`), 0, 1},
	// Rust
	{KindFunction, regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)`), 0, 1},
	{KindClass, regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum)\s+(\w+)`), 0, 1},
	{KindInterface, regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)`), 0, 1},
	// Java-style methods: modifiers, return type, name, parameter list.
	{KindMethod, regexp.MustCompile(`^\s+(?:public|private|protected)\s+(?:static\s+)?(?:final\s+)?[\w<>\[\],\s]+\s+(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w, ]+)?\s*\{?\s*$`), 0, 1},
}

// ScanDeclarations finds declarations line by line with regular
// expressions. It is language-agnostic and less precise than Parser,
// but works on any text and never fails.
func ScanDeclarations(content []byte) []Symbol {
	var out []Symbol
	for i, line := range strings.Split(string(content), "\n") {
		for _, rule := range declarationRules {
			m := rule.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			s := Symbol{Name: m[rule.name], Kind: rule.kind, Line: i + 1, EndLine: i + 1}
			if rule.parent > 0 {
				s.Parent = m[rule.parent]
			}
			out = append(out, s)
			break
		}
	}
	return out
}
