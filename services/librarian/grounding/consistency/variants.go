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
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// templateFamily turns a recognized question into fixed paraphrases. The
// first submatch of a matching pattern is the identifier substituted
// into every template.
type templateFamily struct {
	family    Family
	patterns  []*regexp.Regexp
	templates []string
}

const ident = "`?([A-Za-z_][\\w.]*)`?"

const fnNoun = `(?:the\s+)?(?:(?:function|method|func)\s+)?`

const typeNoun = `(?:the\s+)?(?:(?:class|struct|type|interface|function|method|module)\s+)?`

// templateFamilies is evaluated in order; the first family whose pattern
// matches wins. Return type precedes purpose so "What does X return?" is
// not read as a purpose question.
var templateFamilies = []templateFamily{
	{
		family: FamilyParameterCount,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)how\s+many\s+(?:parameters|arguments|params|args)\s+does\s+` + fnNoun + ident + `\s+(?:take|accept|have|receive)`),
			regexp.MustCompile(`(?i)(?:number|count)\s+of\s+(?:parameters|arguments)\s+(?:of|for|in)\s+` + fnNoun + ident),
		},
		templates: []string{
			"How many parameters does %s take?",
			"What is the number of parameters %s accepts?",
			"How many arguments does %s accept?",
			"What parameters does %s take?",
			"Count the parameters of %s.",
		},
	},
	{
		family: FamilyReturnType,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)what\s+(?:does|do)\s+` + fnNoun + ident + `\s+return`),
			regexp.MustCompile(`(?i)(?:what\s+is\s+)?the\s+return\s+(?:type|value)\s+of\s+` + fnNoun + ident),
		},
		templates: []string{
			"What does %s return?",
			"What is the return type of %s?",
			"What type does %s return?",
			"What value is returned by %s?",
		},
	},
	{
		family: FamilyLocation,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)where\s+(?:is|are)\s+` + typeNoun + ident + `\s+(?:defined|declared|located|implemented)`),
			regexp.MustCompile(`(?i)(?:which|what)\s+file\s+(?:defines|declares|contains)\s+` + typeNoun + ident),
		},
		templates: []string{
			"Where is %s defined?",
			"In which file is %s declared?",
			"What file contains the definition of %s?",
			"Where can I find %s?",
		},
	},
	{
		family: FamilyPurpose,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)what\s+(?:does|do)\s+` + typeNoun + ident + `\s+do\b`),
			regexp.MustCompile(`(?i)what\s+is\s+` + typeNoun + ident + `\s+(?:used\s+)?for\b`),
			regexp.MustCompile(`(?i)(?:what\s+is\s+)?the\s+purpose\s+of\s+` + typeNoun + ident),
		},
		templates: []string{
			"What does %s do?",
			"What is the purpose of %s?",
			"Explain what %s is for.",
			"Describe the responsibility of %s.",
		},
	},
	{
		family: FamilyMethodListing,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)what\s+methods\s+does\s+` + typeNoun + ident + `\s+(?:have|expose|define|provide)`),
			regexp.MustCompile(`(?i)list\s+(?:the\s+|all\s+)?methods\s+(?:of|on|in)\s+` + typeNoun + ident),
			regexp.MustCompile(`(?i)which\s+methods\s+(?:are\s+)?(?:defined|declared)\s+on\s+` + typeNoun + ident),
		},
		templates: []string{
			"What methods does %s have?",
			"List the methods of %s.",
			"Which methods are defined on %s?",
			"What functions does %s expose?",
		},
	},
}

// GenerateVariants expands baseQuery into a QuerySet. The canonical query
// is always first and flagged IsCanonical; paraphrases equal to it are
// dropped.
func (c *Checker) GenerateVariants(baseQuery, topic string) QuerySet {
	baseQuery = strings.TrimSpace(baseQuery)
	family, paraphrases := paraphrase(baseQuery)
	set := QuerySet{
		ID:             uuid.NewString(),
		Topic:          topic,
		CanonicalQuery: baseQuery,
		Variants: []QueryVariant{{
			ID:          uuid.NewString(),
			Query:       baseQuery,
			IsCanonical: true,
			Family:      family,
		}},
	}
	seen := map[string]bool{strings.ToLower(baseQuery): true}
	for _, p := range paraphrases {
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		set.Variants = append(set.Variants, QueryVariant{
			ID:     uuid.NewString(),
			Query:  p,
			Family: family,
		})
	}
	return set
}

func paraphrase(q string) (Family, []string) {
	if q == "" {
		return FamilyGeneric, nil
	}
	for _, tf := range templateFamilies {
		for _, re := range tf.patterns {
			m := re.FindStringSubmatch(q)
			if m == nil {
				continue
			}
			out := make([]string, len(tf.templates))
			for i, t := range tf.templates {
				out[i] = fmt.Sprintf(t, m[1])
			}
			return tf.family, out
		}
	}
	return FamilyGeneric, genericParaphrases(q)
}

// genericParaphrases rephrases questions no family recognizes.
func genericParaphrases(q string) []string {
	body := strings.TrimSpace(strings.TrimRight(q, "?.! "))
	lower := strings.ToLower(body)
	var out []string
	switch {
	case strings.HasPrefix(lower, "what "):
		out = append(out,
			"Describe "+lowerFirst(body)+".",
			"Explain "+lowerFirst(body)+".")
	case strings.HasPrefix(lower, "how "):
		out = append(out, "In what way "+strings.TrimSpace(body[len("how "):])+"?")
	}
	if strings.HasSuffix(q, "?") || len(out) == 0 {
		out = append(out, "Tell me about "+lowerFirst(body)+".")
	}
	return out
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
