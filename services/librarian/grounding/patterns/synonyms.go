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

import (
	"regexp"
	"strings"
)

// SynonymGroups maps a canonical term to the variants that normalize to it.
var SynonymGroups = map[string][]string{
	"parameter": {"parameters", "param", "params", "argument", "arguments", "arg", "args", "input", "inputs"},
	"accepts":   {"accept", "takes", "take", "receives", "receive"},
	"returns":   {"return", "returned", "returning", "yields", "yield", "outputs", "produces"},
	"defined":   {"declared", "located", "implemented", "found", "lives"},
	"function":  {"functions", "func", "method", "methods", "procedure", "routine", "fn"},
	"class":     {"classes", "struct", "structs", "structure", "type", "types"},
}

// TypeSynonymGroups canonicalizes type names across languages.
var TypeSynonymGroups = map[string][]string{
	"list":   {"array", "slice", "vector", "arraylist"},
	"map":    {"dict", "dictionary", "hashmap", "hash", "object"},
	"string": {"str", "text"},
	"int":    {"integer", "int32", "int64", "number"},
	"bool":   {"boolean"},
	"void":   {"nothing", "none", "nil", "null", "undefined"},
	"error":  {"err", "exception"},
}

var (
	synonymIndex     = invert(SynonymGroups)
	typeSynonymIndex = invert(TypeSynonymGroups)

	// articleBeforeWord matches an article only when a word follows it.
	articleBeforeWord = regexp.MustCompile(`(?i)\b(?:a|an|the)\s+(\w)`)
)

func invert(groups map[string][]string) map[string]string {
	idx := make(map[string]string)
	for canonical, variants := range groups {
		idx[canonical] = canonical
		for _, v := range variants {
			idx[v] = canonical
		}
	}
	return idx
}

// CanonicalTerm returns the canonical form of a lowercase term, or the
// term itself if it belongs to no synonym group.
func CanonicalTerm(term string) string {
	t := strings.ToLower(term)
	if c, ok := synonymIndex[t]; ok {
		return c
	}
	return t
}

// CanonicalType normalizes a type name: lowercase, backticks and pointer
// or slice punctuation stripped, then mapped through TypeSynonymGroups.
func CanonicalType(name string) string {
	t := strings.ToLower(strings.Trim(name, "`*&[]. "))
	if c, ok := typeSynonymIndex[t]; ok {
		return c
	}
	return t
}

// NormalizeFact prepares a fact string for comparison. It lowercases,
// strips articles that precede a word, canonicalizes number words and
// maps every token through the synonym groups.
func NormalizeFact(fact string) string {
	s := strings.ToLower(strings.TrimSpace(fact))
	s = articleBeforeWord.ReplaceAllString(s, "$1")
	s = CanonicalizeNumbers(s)
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if f == "" {
			continue
		}
		out = append(out, CanonicalTerm(f))
	}
	return strings.Join(out, " ")
}
