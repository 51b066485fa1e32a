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

// RelationKind is the type of a structural relationship between symbols.
type RelationKind string

const (
	RelExtends    RelationKind = "extends"
	RelImplements RelationKind = "implements"
	RelReturns    RelationKind = "returns"
	RelHasMethod  RelationKind = "hasMethod"
	RelParameter  RelationKind = "parameter"
	RelAsync      RelationKind = "async"
)

// SingleValued reports whether a subject can hold this relationship with
// at most one object. Only single-valued relationships can contradict.
func (k RelationKind) SingleValued() bool {
	return k == RelExtends || k == RelReturns
}

// Relationship is a typed (subject, kind, object) triple.
type Relationship struct {
	Kind    RelationKind `json:"kind"`
	Subject string       `json:"subject"`
	Object  string       `json:"object"`
	Rule    string       `json:"rule"`
}

// String renders the relationship as "Subject kind Object".
func (r Relationship) String() string {
	return r.Subject + " " + string(r.Kind) + " " + r.Object
}

// SameSubject reports whether both relationships share kind and subject.
func (r Relationship) SameSubject(o Relationship) bool {
	return r.Kind == o.Kind && strings.EqualFold(r.Subject, o.Subject)
}

// SameObject compares objects after type canonicalization.
func (r Relationship) SameObject(o Relationship) bool {
	return CanonicalType(r.Object) == CanonicalType(o.Object)
}

// RelationRule is a named extractor. Subject and Object are the submatch
// indexes of the pattern; Expand, when set, replaces the default
// one-relationship-per-match behavior.
type RelationRule struct {
	Name    string
	Kind    RelationKind
	Pattern *regexp.Regexp
	Subject int
	Object  int
	Expand  func(m []string) []Relationship
}

const relSubject = "\\b`?(\\w+)`?(?:\\s+(?:class|struct|interface|type|function|method))?\\s+"

// RelationRules covers prose statements and common code syntax for Go,
// Python, JavaScript, TypeScript and Java.
var RelationRules = []RelationRule{
	{
		Name:    "prose_extends",
		Kind:    RelExtends,
		Pattern: regexp.MustCompile(`(?i)` + relSubject + "(?:extends|inherits\\s+from|is\\s+a\\s+subclass\\s+of)\\s+`?(\\w+)`?"),
		Subject: 1, Object: 2,
	},
	{
		Name:    "python_class_base",
		Kind:    RelExtends,
		Pattern: regexp.MustCompile(`\bclass\s+(\w+)\s*\(\s*(\w+)\s*[,)]`),
		Subject: 1, Object: 2,
	},
	{
		Name:    "java_class_implements",
		Kind:    RelImplements,
		Pattern: regexp.MustCompile(`\bclass\s+(\w+)(?:\s+extends\s+\w+)?\s+implements\s+([\w\s,]+?)\s*\{`),
		Expand: func(m []string) []Relationship {
			var out []Relationship
			for _, iface := range strings.Split(m[2], ",") {
				if iface = strings.TrimSpace(iface); iface != "" {
					out = append(out, Relationship{Kind: RelImplements, Subject: m[1], Object: iface})
				}
			}
			return out
		},
	},
	{
		Name:    "prose_implements",
		Kind:    RelImplements,
		Pattern: regexp.MustCompile(`(?i)` + relSubject + "implements\\s+`?(\\w+)`?"),
		Subject: 1, Object: 2,
	},
	{
		Name:    "go_func_returns",
		Kind:    RelReturns,
		Pattern: regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?(\w+)\s*\([^)]*\)\s*([\w.\[\]*]+)\s*\{`),
		Subject: 1, Object: 2,
	},
	{
		Name:    "python_def_returns",
		Kind:    RelReturns,
		Pattern: regexp.MustCompile(`\bdef\s+(\w+)\s*\([^)]*\)\s*->\s*([\w.\[\]]+)`),
		Subject: 1, Object: 2,
	},
	{
		Name:    "ts_function_returns",
		Kind:    RelReturns,
		Pattern: regexp.MustCompile(`\bfunction\s+(\w+)\s*(?:<[^>]*>)?\s*\([^)]*\)\s*:\s*([\w.\[\]<>]+)`),
		Subject: 1, Object: 2,
	},
	{
		Name:    "prose_returns",
		Kind:    RelReturns,
		Pattern: regexp.MustCompile(`(?i)` + relSubject + "returns\\s+(?:an?\\s+|the\\s+)?`?([\\w.\\[\\]*]+)`?"),
		Subject: 1, Object: 2,
	},
	{
		Name:    "go_method_receiver",
		Kind:    RelHasMethod,
		Pattern: regexp.MustCompile(`\bfunc\s+\(\s*\w*\s*\*?(\w+)\s*\)\s*(\w+)\s*\(`),
		Subject: 1, Object: 2,
	},
	{
		Name:    "prose_has_method",
		Kind:    RelHasMethod,
		Pattern: regexp.MustCompile(`(?i)` + relSubject + "(?:has|defines|exposes|provides)\\s+(?:an?\\s+|the\\s+)?method\\s+`?(\\w+)`?"),
		Subject: 1, Object: 2,
	},
	{
		Name:    "prose_parameter",
		Kind:    RelParameter,
		Pattern: regexp.MustCompile(`(?i)` + relSubject + "(?:takes|accepts|receives)\\s+(?:an?\\s+|the\\s+)?(?:parameter|argument|param)\\s+`?(\\w+)`?"),
		Subject: 1, Object: 2,
	},
	{
		Name:    "code_parameters",
		Kind:    RelParameter,
		Pattern: regexp.MustCompile(`\b(?:func|def|function)\s+(?:\([^)]*\)\s*)?(\w+)\s*\(([^)]*)\)`),
		Expand: func(m []string) []Relationship {
			var out []Relationship
			for _, p := range strings.Split(m[2], ",") {
				if name := paramName(p); name != "" {
					out = append(out, Relationship{Kind: RelParameter, Subject: m[1], Object: name})
				}
			}
			return out
		},
	},
	{
		Name:    "prose_async",
		Kind:    RelAsync,
		Pattern: regexp.MustCompile(`(?i)` + relSubject + `is\s+(?:an?\s+)?async(?:hronous)?\b`),
		Subject: 1,
	},
	{
		Name:    "code_async",
		Kind:    RelAsync,
		Pattern: regexp.MustCompile(`\basync\s+(?:function\s+|def\s+)(\w+)`),
		Subject: 1,
	},
}

// ExtractRelationships applies every RelationRule to text and returns the
// distinct relationships found, in rule order.
func ExtractRelationships(text string) []Relationship {
	seen := make(map[string]bool)
	var out []Relationship
	add := func(r Relationship) {
		if r.Subject == "" || IsStopword(r.Subject) {
			return
		}
		if r.Kind == RelAsync {
			r.Object = "true"
		}
		key := string(r.Kind) + "|" + strings.ToLower(r.Subject) + "|" + strings.ToLower(r.Object)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, r)
	}
	for _, rule := range RelationRules {
		for _, m := range rule.Pattern.FindAllStringSubmatch(text, -1) {
			if rule.Expand != nil {
				for _, r := range rule.Expand(m) {
					r.Rule = rule.Name
					add(r)
				}
				continue
			}
			r := Relationship{Kind: rule.Kind, Subject: m[rule.Subject], Rule: rule.Name}
			if rule.Object > 0 {
				r.Object = strings.TrimRight(m[rule.Object], ".,;:")
			}
			add(r)
		}
	}
	return out
}

// paramName extracts the parameter name from one entry of a parameter
// list in Go ("ctx context.Context"), Python ("name: str = x") or
// JavaScript ("name = 1").
func paramName(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if i := strings.IndexAny(p, ":="); i >= 0 {
		p = strings.TrimSpace(p[:i])
	}
	fields := strings.Fields(p)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimLeft(fields[0], "*&.")
	if name == "self" || name == "this" || name == "cls" {
		return ""
	}
	return name
}
