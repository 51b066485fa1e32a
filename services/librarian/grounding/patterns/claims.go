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
	"fmt"
	"regexp"
	"strings"
)

// ClaimKind categorizes a checkable claim found in prose.
type ClaimKind string

const (
	ClaimNumeric     ClaimKind = "numeric"
	ClaimMethod      ClaimKind = "has_method"
	ClaimParameter   ClaimKind = "parameter"
	ClaimInheritance ClaimKind = "inheritance"
	ClaimReturns     ClaimKind = "returns"
	ClaimLocation    ClaimKind = "location"
	ClaimProperty    ClaimKind = "property"
	ClaimIsA         ClaimKind = "is_a"
)

// AnswerShape is the expected form of the answer to a verification question.
type AnswerShape string

const (
	ShapeFactual AnswerShape = "factual"
	ShapeBoolean AnswerShape = "boolean"
	ShapeNumeric AnswerShape = "numeric"
)

// subjectPrefix captures the claim subject, optionally followed by a
// generic noun ("Parser class", "the function").
const subjectPrefix = "\\b`?(?P<subj>\\w+)`?(?:\\s+(?P<noun>class|struct|interface|type|function|method|func|module))?\\s+"

const objectIdent = "`?(?P<obj>[\\w.]+)`?"

// ClaimRule maps a pattern to a claim kind, answer shape and question.
type ClaimRule struct {
	Kind     ClaimKind
	Shape    AnswerShape
	Pattern  *regexp.Regexp
	Question func(c Claim) string
}

// Claim is a checkable statement extracted by a ClaimRule.
type Claim struct {
	Kind    ClaimKind   `json:"kind"`
	Shape   AnswerShape `json:"shape"`
	Text    string      `json:"text"`
	Subject string      `json:"subject,omitempty"`
	Verb    string      `json:"verb,omitempty"`
	Object  string      `json:"object,omitempty"`
	Number  int         `json:"number"`
	Unit    string      `json:"unit,omitempty"`
}

// HasNumber reports whether the claim asserts a count.
func (c Claim) HasNumber() bool {
	return c.Kind == ClaimNumeric && c.Number >= 0
}

// ClaimRules is evaluated first-match-wins per sentence. Order:
//
//  1. numeric       "X has/returns/takes N units"
//  2. has_method    "X has a method Y"
//  3. parameter     "X takes a parameter Y"
//  4. inheritance   "X extends/implements Y"
//  5. returns       "X returns Y"
//  6. location      "X is defined in F"
//  7. property      "X has a property Y"
//  8. is_a          "X is a/an Y"
//
// Numeric precedes returns so "returns two values" is checked as a count.
var ClaimRules = []ClaimRule{
	{
		Kind:    ClaimNumeric,
		Shape:   ShapeNumeric,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?P<verb>has|have|returns?|takes?|accepts?|contains?|defines?|exposes?|exports?|declares?)\s+(?:exactly\s+|only\s+)?(?P<num>` + NumberAlternation + `)\s+(?P<unit>[a-z]+)`),
		Question: func(c Claim) string {
			return fmt.Sprintf("How many %s does %s %s?", c.Unit, c.subjectOrIt(), baseVerb(c.Verb))
		},
	},
	{
		Kind:    ClaimMethod,
		Shape:   ShapeBoolean,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?P<verb>has|defines|exposes|provides)\s+(?:an?\s+|the\s+)?method\s+` + objectIdent),
		Question: func(c Claim) string {
			return fmt.Sprintf("Does %s have a method named %s?", c.subjectOrIt(), c.Object)
		},
	},
	{
		Kind:    ClaimParameter,
		Shape:   ShapeBoolean,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?P<verb>takes|accepts|receives)\s+(?:an?\s+|the\s+)?(?:parameter|argument|param)\s+` + objectIdent),
		Question: func(c Claim) string {
			return fmt.Sprintf("Does %s take a parameter named %s?", c.subjectOrIt(), c.Object)
		},
	},
	{
		Kind:    ClaimInheritance,
		Shape:   ShapeBoolean,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?P<verb>extends|implements|inherits\s+from)\s+` + objectIdent),
		Question: func(c Claim) string {
			return fmt.Sprintf("Does %s %s %s?", c.subjectOrIt(), baseVerb(c.Verb), c.Object)
		},
	},
	{
		Kind:    ClaimReturns,
		Shape:   ShapeFactual,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?P<verb>returns)\s+(?:an?\s+|the\s+)?` + "`?(?P<obj>[\\w.\\[\\]*]+)`?"),
		Question: func(c Claim) string {
			return fmt.Sprintf("What does %s return?", c.subjectOrIt())
		},
	},
	{
		Kind:    ClaimLocation,
		Shape:   ShapeFactual,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?:is\s+|are\s+)?(?P<verb>defined|declared|located|implemented)\s+in\s+` + "`?(?P<obj>[\\w./-]+)`?"),
		Question: func(c Claim) string {
			return fmt.Sprintf("Where is %s defined?", c.subjectOrIt())
		},
	},
	{
		Kind:    ClaimProperty,
		Shape:   ShapeBoolean,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?P<verb>has|have|contains)\s+(?:an?\s+|the\s+)?(?:property|field|attribute)\s+` + objectIdent),
		Question: func(c Claim) string {
			return fmt.Sprintf("Does %s have a property named %s?", c.subjectOrIt(), c.Object)
		},
	},
	{
		Kind:    ClaimIsA,
		Shape:   ShapeBoolean,
		Pattern: regexp.MustCompile(`(?i)` + subjectPrefix + `(?P<verb>is)\s+(?:an?)\s+(?P<obj>\w+(?:\s+\w+)?)`),
		Question: func(c Claim) string {
			return fmt.Sprintf("Is %s a %s?", c.subjectOrIt(), c.Object)
		},
	},
}

// MatchClaim applies ClaimRules to one sentence and returns the claim
// produced by the first rule that matches.
func MatchClaim(sentence string) (Claim, ClaimRule, bool) {
	for _, rule := range ClaimRules {
		m := rule.Pattern.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		return buildClaim(rule, m), rule, true
	}
	return Claim{}, ClaimRule{}, false
}

func buildClaim(rule ClaimRule, m []string) Claim {
	c := Claim{
		Kind:   rule.Kind,
		Shape:  rule.Shape,
		Text:   strings.TrimRight(strings.TrimSpace(m[0]), ".,;:"),
		Number: -1,
	}
	c.Subject = cleanSubject(group(rule.Pattern, m, "subj"), group(rule.Pattern, m, "noun"))
	c.Verb = strings.ToLower(group(rule.Pattern, m, "verb"))
	c.Object = strings.TrimRight(group(rule.Pattern, m, "obj"), ".,;:")
	if num := group(rule.Pattern, m, "num"); num != "" {
		if v, ok := ParseCount(num); ok {
			c.Number = v
		}
	}
	c.Unit = strings.ToLower(group(rule.Pattern, m, "unit"))
	return c
}

// QuestionFor renders the verification question of a claim.
func (r ClaimRule) QuestionFor(c Claim) string {
	if r.Question == nil {
		return "Is it true that " + c.Text + "?"
	}
	return r.Question(c)
}

func (c Claim) subjectOrIt() string {
	if c.Subject == "" {
		return "it"
	}
	return c.Subject
}

// group returns the named submatch, or "" if absent.
func group(re *regexp.Regexp, m []string, name string) string {
	idx := re.SubexpIndex(name)
	if idx < 0 || idx >= len(m) {
		return ""
	}
	return m[idx]
}

// cleanSubject drops articles and pronouns captured as subjects, falling
// back to the generic noun when one was captured.
func cleanSubject(subj, noun string) string {
	if subj == "" || IsStopword(subj) {
		return strings.ToLower(noun)
	}
	return subj
}

// baseVerb converts a third-person verb to its base form.
func baseVerb(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "has":
		return "have"
	case "does":
		return "do"
	case "is":
		return "be"
	case "inherits from":
		return "inherit from"
	}
	if strings.HasSuffix(v, "ies") {
		return strings.TrimSuffix(v, "ies") + "y"
	}
	if strings.HasSuffix(v, "sses") || strings.HasSuffix(v, "shes") || strings.HasSuffix(v, "ches") || strings.HasSuffix(v, "xes") {
		return strings.TrimSuffix(v, "es")
	}
	if strings.HasSuffix(v, "s") && !strings.HasSuffix(v, "ss") {
		return strings.TrimSuffix(v, "s")
	}
	return v
}

// BaseVerb is the exported form of baseVerb, used when inserting modal
// hedges ("returns" becomes "may return").
func BaseVerb(v string) string {
	return baseVerb(v)
}
