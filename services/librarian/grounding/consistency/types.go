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

import "context"

// ConflictType classifies a violation.
type ConflictType string

const (
	ConflictDirect  ConflictType = "direct_contradiction"
	ConflictPartial ConflictType = "partial_conflict"
	ConflictMissing ConflictType = "missing_fact"
	ConflictExtra   ConflictType = "extra_fact"
)

// Severity ranks a violation.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Family names the template family a query matched.
type Family string

const (
	FamilyParameterCount Family = "parameter_count"
	FamilyReturnType     Family = "return_type"
	FamilyLocation       Family = "definition_location"
	FamilyPurpose        Family = "purpose"
	FamilyMethodListing  Family = "method_listing"
	FamilyGeneric        Family = "generic"
)

// QueryVariant is one phrasing of a question.
type QueryVariant struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	IsCanonical bool   `json:"is_canonical"`
	Family      Family `json:"family"`
}

// QuerySet is a canonical question plus its paraphrases. The canonical
// query is always Variants[0].
type QuerySet struct {
	ID             string         `json:"id"`
	Topic          string         `json:"topic"`
	CanonicalQuery string         `json:"canonical_query" binding:"required"`
	Variants       []QueryVariant `json:"variants"`
}

// Answer is one independently produced answer to a variant.
type Answer struct {
	VariantID string   `json:"variant_id"`
	Question  string   `json:"question"`
	Text      string   `json:"text"`
	Facts     []string `json:"facts"`
}

// Violation is a conflict between two answers of one set.
type Violation struct {
	Topic          string       `json:"topic"`
	CanonicalQuery string       `json:"canonical_query"`
	Answers        []Answer     `json:"answers"`
	ConflictType   ConflictType `json:"conflict_type"`
	Severity       Severity     `json:"severity"`
	Explanation    string       `json:"explanation"`
}

// Counts tallies violations by type.
type Counts struct {
	DirectContradictions int `json:"direct_contradictions"`
	PartialConflicts     int `json:"partial_conflicts"`
	MissingFacts         int `json:"missing_facts"`
	ExtraFacts           int `json:"extra_facts"`
}

func (c *Counts) add(t ConflictType) {
	switch t {
	case ConflictDirect:
		c.DirectContradictions++
	case ConflictPartial:
		c.PartialConflicts++
	case ConflictMissing:
		c.MissingFacts++
	case ConflictExtra:
		c.ExtraFacts++
	}
}

// Report is the outcome of RunConsistencyCheck.
type Report struct {
	ID              string      `json:"id"`
	TotalSets       int         `json:"total_sets"`
	ConsistentSets  int         `json:"consistent_sets"`
	ConsistencyRate float64     `json:"consistency_rate"`
	Violations      []Violation `json:"violations"`
	Counts          Counts      `json:"counts"`
	SkippedVariants int         `json:"skipped_variants"`
}

// AnswerProvider produces an answer for a query. It is the only point
// where the checker waits on I/O.
type AnswerProvider interface {
	Answer(ctx context.Context, query string) (string, error)
}

// AnswerFunc adapts a function to AnswerProvider.
type AnswerFunc func(ctx context.Context, query string) (string, error)

// Answer calls f.
func (f AnswerFunc) Answer(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Config configures the checker.
type Config struct {
	// MaxConcurrency bounds concurrent provider calls within one set.
	MaxConcurrency int
}

// DefaultConfig returns the default checker configuration.
func DefaultConfig() *Config {
	return &Config{MaxConcurrency: 4}
}
