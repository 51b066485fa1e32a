// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed redact_patterns.yaml
var redactPatterns []byte

// RedactionRule is one secret pattern.
type RedactionRule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
	Regex       string `yaml:"regex"`

	compiled *regexp.Regexp
}

type redactionFile struct {
	Rules []RedactionRule `yaml:"rules"`
}

// Redactor replaces secrets in record text with "[REDACTED:<rule id>]".
//
// Verdicts carry claims, answers and source snippets verbatim, so a key
// pasted into an answer would otherwise persist for the whole retention
// period.
//
// Thread Safety: Safe for concurrent use after construction.
type Redactor struct {
	rules []RedactionRule
}

// NewRedactor compiles the embedded rules, highest priority first.
func NewRedactor() (*Redactor, error) {
	return newRedactor(redactPatterns)
}

func newRedactor(data []byte) (*Redactor, error) {
	var file redactionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("audit: parse redaction rules: %w", err)
	}
	for i := range file.Rules {
		re, err := regexp.Compile(file.Rules[i].Regex)
		if err != nil {
			return nil, fmt.Errorf("audit: compile rule %s: %w", file.Rules[i].ID, err)
		}
		file.Rules[i].compiled = re
	}
	sort.SliceStable(file.Rules, func(i, j int) bool {
		return file.Rules[i].Priority > file.Rules[j].Priority
	})
	return &Redactor{rules: file.Rules}, nil
}

// Rules returns the rule IDs in evaluation order.
func (r *Redactor) Rules() []string {
	ids := make([]string, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.ID
	}
	return ids
}

// Redact scrubs s and returns the IDs of the rules that fired, in
// evaluation order.
func (r *Redactor) Redact(s string) (string, []string) {
	var fired []string
	for _, rule := range r.rules {
		if !rule.compiled.MatchString(s) {
			continue
		}
		s = rule.compiled.ReplaceAllLiteralString(s, "[REDACTED:"+rule.ID+"]")
		fired = append(fired, rule.ID)
	}
	return s, fired
}

// RedactRecord scrubs the free-text fields of rec. Structured fields such
// as Component and Score are left alone.
func (r *Redactor) RedactRecord(rec Record) (Record, []string) {
	var fired []string
	var hit []string

	rec.Summary, hit = r.Redact(rec.Summary)
	fired = append(fired, hit...)

	if len(rec.Detail) > 0 {
		var detail string
		detail, hit = r.Redact(string(rec.Detail))
		rec.Detail = []byte(detail)
		fired = append(fired, hit...)
	}
	return rec, fired
}
