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
	"unicode"
)

var (
	// backtickIdentifier matches `quoted` identifiers.
	backtickIdentifier = regexp.MustCompile("`([^`\\s]+)`")

	// camelIdentifier matches UpperCamel and lowerCamel identifiers.
	camelIdentifier = regexp.MustCompile(`\b(?:[A-Z][a-z0-9]+(?:[A-Z][a-zA-Z0-9]*)+|[a-z]+(?:[A-Z][a-z0-9]*)+)\b`)

	// snakeIdentifier matches snake_case identifiers.
	snakeIdentifier = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// stopwords are dropped from key-term extraction.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "of": true, "to": true,
	"in": true, "on": true, "for": true, "and": true, "or": true, "it": true,
	"its": true, "this": true, "that": true, "these": true, "those": true,
	"with": true, "as": true, "by": true, "at": true, "from": true, "does": true,
	"do": true, "did": true, "what": true, "how": true, "which": true, "who": true,
	"where": true, "why": true, "when": true, "has": true, "have": true, "had": true,
	"can": true, "will": true, "would": true, "should": true, "there": true,
	"their": true, "they": true, "them": true, "into": true, "about": true,
	"any": true, "all": true, "also": true, "but": true, "not": true, "than": true,
	"then": true, "so": true, "if": true, "you": true, "your": true, "we": true,
	"our": true, "i": true, "me": true, "my": true, "named": true, "called": true,
}

// IsStopword reports whether the lowercase word carries no content.
func IsStopword(word string) bool {
	return stopwords[strings.ToLower(word)]
}

// Tokenize lowercases text and splits it into alphanumeric tokens.
// Underscores are kept inside tokens so snake_case names survive.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// KeyTerms returns the unique content-bearing tokens of text in order of
// first appearance. Stopwords, numbers, number words and tokens shorter
// than three characters are dropped; numbers are compared separately.
func KeyTerms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range Tokenize(text) {
		if len(tok) < 3 || stopwords[tok] || isNumberToken(tok) {
			continue
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// TermOverlap returns the fraction of terms that also appear in other.
// Returns 0 when terms is empty.
func TermOverlap(terms, other []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	set := make(map[string]bool, len(other))
	for _, t := range other {
		set[t] = true
	}
	hits := 0
	for _, t := range terms {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// TokenSimilarity is the Jaccard similarity of the token sets of a and b.
func TokenSimilarity(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(ta))
	for _, t := range ta {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tb))
	for _, t := range tb {
		setB[t] = true
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// Normalize lowercases text, collapses whitespace and trims trailing
// sentence punctuation.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimRight(s, ".!?;:, ")
}

// SplitSentences splits text on sentence terminators followed by
// whitespace, and on newlines. Empty fragments are dropped.
//
// A period inside a token ("config.go", "v1.2") does not end a sentence.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range runes {
		switch {
		case r == '\n':
			flush(i)
			start = i + 1
		case r == '.' || r == '!' || r == '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	if start < len(runes) {
		flush(len(runes))
	}
	return out
}

// Identifiers extracts code identifiers mentioned in text: backtick-quoted
// names, CamelCase names and snake_case names. Order of first appearance
// is preserved and duplicates are removed.
func Identifiers(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		id = strings.Trim(id, "().,;:")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, m := range backtickIdentifier.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range camelIdentifier.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range snakeIdentifier.FindAllString(text, -1) {
		add(m)
	}
	return ids
}

// ContainsWord reports whether text contains word on word boundaries,
// ignoring case.
func ContainsWord(text, word string) bool {
	if word == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)(?:^|[^\w])` + regexp.QuoteMeta(word) + `(?:$|[^\w])`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
