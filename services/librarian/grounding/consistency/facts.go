// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package consistency

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

type factKind string

const (
	factParamCount  factKind = "param_count"
	factReturnCount factKind = "return_count"
	factItemCount   factKind = "item_count"
	factReturnType  factKind = "return_type"
	factTypedParam  factKind = "typed_param"
	factParamNames  factKind = "param_names"
	factFile        factKind = "file"
	factLine        factKind = "line"
	factDeclKind    factKind = "decl_kind"
	factList        factKind = "list"
	factSentence    factKind = "sentence"
)

// fact is a typed fact extracted from an answer. Count is -1 when the
// fact is not a count.
type fact struct {
	kind  factKind
	unit  string
	value string
	count int
	items []string
}

func (f fact) String() string {
	switch f.kind {
	case factParamCount:
		return fmt.Sprintf("takes %d parameters", f.count)
	case factReturnCount:
		return fmt.Sprintf("returns %d values", f.count)
	case factItemCount:
		return fmt.Sprintf("has %d %s", f.count, f.unit)
	case factReturnType:
		return "returns " + f.value
	case factTypedParam:
		return "parameter " + f.value
	case factParamNames:
		return "parameters: " + strings.Join(f.items, ", ")
	case factFile:
		return "defined in " + f.value
	case factLine:
		return "line " + f.value
	case factDeclKind:
		return "is a " + f.value
	case factList:
		return f.unit + ": " + strings.Join(f.items, ", ")
	default:
		return f.value
	}
}

const countWords = `(?:parameters?|arguments?|params?|args?)`

const itemUnits = `(methods?|fields?|items?|elements?|options?|properties|property|functions?|steps?|cases?|entries|entry|values?)`

var (
	paramCountRe    = regexp.MustCompile(`(?i)\b(\d+)\s+(?:\w+\s+)?` + countWords + `\b`)
	noParamsRe      = regexp.MustCompile(`(?i)\b(?:takes|accepts|has|receives)\s+no\s+` + countWords + `\b`)
	returnCountRe   = regexp.MustCompile(`(?i)\breturns?\s+(\d+)\s+(?:\w+\s+)?values?\b`)
	itemCountRe     = regexp.MustCompile(`(?i)\b(\d+)\s+(?:\w+\s+)?` + itemUnits + `\b`)
	returnTypeRe    = regexp.MustCompile("(?i)\\breturns?\\s+(?:an?\\s+|the\\s+)?`?([\\w.\\[\\]*]+)`?")
	returnAlsoRe    = regexp.MustCompile("(?i)\\breturns?\\b[^.\\n]*?\\b(?:and|or)\\s+(?:an?|the)\\s+`?([\\w.\\[\\]*]+)`?(?:\\s+(?:otherwise|if|when|on|unless)\\b|\\s*[.,;]|\\s*$)")
	returnTypeIsRe  = regexp.MustCompile("(?i)\\breturn\\s+type\\s+(?:of\\s+`?\\w+`?\\s+)?is\\s+(?:an?\\s+)?`?([\\w.\\[\\]*]+)`?")
	typedParamRe    = regexp.MustCompile("(?i)\\b(?:parameter|argument)\\s+`?(\\w+)`?\\s+(?:of\\s+type\\s+|is\\s+an?\\s+|:\\s*)`?([\\w.\\[\\]*]+)`?")
	paramNamesRe    = regexp.MustCompile(`(?i)\b(?:parameters|arguments)\s+(?:are|:|include)\s*([^.\n]+)`)
	fileRe          = regexp.MustCompile("(?i)\\b(?:defined|declared|located|implemented|found)\\s+in\\s+`?([\\w./-]+\\.[a-z]{1,5})`?")
	lineRe          = regexp.MustCompile(`(?i)\b(?:on|at)\s+line\s+(\d+)\b`)
	declKindRe      = regexp.MustCompile(`(?i)\bis\s+(?:declared\s+as\s+)?an?\s+(struct|interface|class|function|method|enum|type\s+alias|constant|variable)\b`)
	listRe          = regexp.MustCompile(`(?i)\b` + itemUnits + `\s+(?:are|:|include)\s*([^.\n]+)`)
	listItemSplitRe = regexp.MustCompile(`\s*(?:,|\band\b|;)\s*`)
	bulletLineRe    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	unitRe          = regexp.MustCompile(`(?i)\b` + itemUnits + `\b`)
)

// returnNoise are words that follow "returns" without naming a type.
var returnNoise = map[string]bool{
	"a": true, "an": true, "the": true, "it": true, "type": true, "types": true,
	"when": true, "if": true, "whether": true, "immediately": true, "early": true,
	"values": true, "value": true, "multiple": true, "to": true,
}

// returnLiterals maps returned values to the type they imply. An empty
// type means the value implies none: "returns nil" says nothing about
// whether the declared type is an error or a pointer.
var returnLiterals = map[string]string{
	"true": "bool", "false": "bool",
	"nil": "", "null": "",
}

// ExtractFacts extracts comparable facts from an answer. Number words are
// canonicalized to digits first. When no pattern matches, the first three
// non-trivial sentences are the facts.
func ExtractFacts(answer string) []string {
	facts := extractTyped(answer)
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		out = append(out, f.String())
	}
	return out
}

func extractTyped(answer string) []fact {
	text := patterns.CanonicalizeNumbers(answer)
	var facts []fact
	seen := make(map[string]bool)
	add := func(f fact) {
		key := strings.ToLower(f.String())
		if seen[key] {
			return
		}
		seen[key] = true
		facts = append(facts, f)
	}

	for _, m := range paramCountRe.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.Atoi(m[1])
		add(fact{kind: factParamCount, count: n})
	}
	if noParamsRe.MatchString(text) {
		add(fact{kind: factParamCount, count: 0})
	}
	for _, m := range returnCountRe.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.Atoi(m[1])
		add(fact{kind: factReturnCount, count: n})
	}
	for _, m := range itemCountRe.FindAllStringSubmatch(text, -1) {
		unit := singular(m[2])
		if unit == "value" {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		add(fact{kind: factItemCount, unit: unit, count: n})
	}
	for _, re := range []*regexp.Regexp{returnTypeIsRe, returnTypeRe, returnAlsoRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := strings.TrimRight(m[1], ".,;:")
			if lit, ok := returnLiterals[strings.ToLower(v)]; ok {
				v = lit
			}
			if v == "" || returnNoise[strings.ToLower(v)] || isDigits(v) {
				continue
			}
			add(fact{kind: factReturnType, value: v, count: -1})
		}
	}
	for _, m := range typedParamRe.FindAllStringSubmatch(text, -1) {
		add(fact{kind: factTypedParam, value: m[1] + " of type " + strings.TrimRight(m[2], ".,;:"), unit: m[1], count: -1})
	}
	for _, m := range paramNamesRe.FindAllStringSubmatch(text, -1) {
		if items := splitList(m[1]); len(items) > 0 {
			add(fact{kind: factParamNames, items: items, count: len(items)})
		}
	}
	for _, m := range fileRe.FindAllStringSubmatch(text, -1) {
		add(fact{kind: factFile, value: m[1], count: -1})
	}
	for _, m := range lineRe.FindAllStringSubmatch(text, -1) {
		add(fact{kind: factLine, value: m[1], count: -1})
	}
	for _, m := range declKindRe.FindAllStringSubmatch(text, -1) {
		add(fact{kind: factDeclKind, value: strings.ToLower(m[1]), count: -1})
	}
	for _, m := range listRe.FindAllStringSubmatch(text, -1) {
		if items := splitList(m[2]); len(items) > 0 {
			add(fact{kind: factList, unit: singular(m[1]), items: items, count: len(items)})
		}
	}
	for _, l := range bulletLists(text) {
		add(fact{kind: factList, unit: l.unit, items: l.items, count: len(l.items)})
	}

	if len(facts) == 0 {
		for _, s := range patterns.SplitSentences(answer) {
			if len(patterns.KeyTerms(s)) < 2 {
				continue
			}
			add(fact{kind: factSentence, value: patterns.Normalize(s), count: -1})
			if len(facts) == 3 {
				break
			}
		}
	}
	return facts
}

// splitList splits "a, b and c" into identifiers. Items that are not
// short names are dropped so prose after a colon is not counted.
func splitList(s string) []string {
	var items []string
	for _, part := range listItemSplitRe.Split(s, -1) {
		part = strings.Trim(strings.TrimSpace(part), "`'\"()")
		if part == "" || len(strings.Fields(part)) > 3 {
			continue
		}
		items = append(items, part)
	}
	return items
}

// bulletList is a markdown list of at least two entries. unit is the
// last item noun on the line introducing the list, or "item".
type bulletList struct {
	unit  string
	items []string
}

func bulletLists(text string) []bulletList {
	var (
		lists  []bulletList
		header string
		cur    []string
	)
	flush := func() {
		if len(cur) > 1 {
			lists = append(lists, bulletList{unit: headerUnit(header), items: cur})
		}
		if len(cur) > 0 {
			header = ""
		}
		cur = nil
	}
	for _, line := range strings.Split(text, "\n") {
		if m := bulletLineRe.FindStringSubmatch(line); m != nil {
			cur = append(cur, strings.TrimSpace(m[1]))
			continue
		}
		flush()
		if strings.TrimSpace(line) != "" {
			header = line
		}
	}
	flush()
	return lists
}

func headerUnit(line string) string {
	m := unitRe.FindAllStringSubmatch(line, -1)
	if len(m) == 0 {
		return "item"
	}
	return singular(m[len(m)-1][1])
}

func singular(unit string) string {
	u := strings.ToLower(unit)
	switch u {
	case "properties":
		return "property"
	case "entries":
		return "entry"
	}
	return strings.TrimSuffix(u, "s")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sameFile reports whether two file references name the same file,
// allowing one to be a path suffix of the other.
func sameFile(a, b string) bool {
	a, b = strings.ToLower(strings.TrimPrefix(a, "./")), strings.ToLower(strings.TrimPrefix(b, "./"))
	if a == b {
		return true
	}
	if strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a) {
		return true
	}
	return path.Base(a) == path.Base(b) && (!strings.Contains(a, "/") || !strings.Contains(b, "/"))
}
