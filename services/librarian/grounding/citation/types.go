// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package citation

import (
	"fmt"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

// Method is a grounding method.
type Method string

const (
	// MethodExactMatch tests for the claim as a substring, then falls back
	// to significant-word overlap.
	MethodExactMatch Method = "exact_match"

	// MethodEntailment checks that the claim's typed relationships are
	// stated by the source.
	MethodEntailment Method = "entailment"

	// MethodSemanticSimilarity scores weighted term overlap plus
	// relationship bonuses.
	MethodSemanticSimilarity Method = "semantic_similarity"
)

// fallbackOrder is the fixed order in which non-preferred methods run.
var fallbackOrder = []Method{MethodExactMatch, MethodEntailment, MethodSemanticSimilarity}

// Valid reports whether m names a known method.
func (m Method) Valid() bool {
	for _, known := range fallbackOrder {
		if m == known {
			return true
		}
	}
	return false
}

// Span is a half-open character range [Start, End) into a document,
// measured in runes.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Citation links a claim to a span of a source document. Citations are
// produced upstream and never modified here.
type Citation struct {
	Claim      string  `json:"claim"`
	SourceID   string  `json:"source_id"`
	SourceSpan Span    `json:"source_span"`
	Confidence float64 `json:"confidence"`
}

// Attempt records one method's score.
type Attempt struct {
	Method   Method   `json:"method"`
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence"`
}

// Contradiction is a claim relationship that the source states with a
// different object.
type Contradiction struct {
	Claim  patterns.Relationship `json:"claim"`
	Source patterns.Relationship `json:"source"`
}

// String describes the contradiction.
func (c Contradiction) String() string {
	return fmt.Sprintf("claim states %q but source states %q", c.Claim.String(), c.Source.String())
}

// VerificationResult is the grounding verdict for one citation.
type VerificationResult struct {
	Citation       Citation         `json:"citation"`
	IsGrounded     bool             `json:"is_grounded"`
	GroundingScore float64          `json:"grounding_score"`
	Evidence       []string         `json:"evidence"`
	Method         Method           `json:"method,omitempty"`
	Contradiction  *Contradiction   `json:"contradiction,omitempty"`
	Attempts       []Attempt        `json:"attempts"`
	Confidence     confidence.Value `json:"confidence"`
}

// Config configures the pipeline.
type Config struct {
	// GroundingThreshold is the minimum score for IsGrounded.
	GroundingThreshold float64

	// PreferredMethod runs first.
	PreferredMethod Method

	// EnableFallback retries with the other methods when the preferred
	// method does not ground the claim.
	EnableFallback bool

	// ExactMatchWeight weighs exact term hits against fuzzy hits in
	// semantic similarity.
	ExactMatchWeight float64
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		GroundingThreshold: 0.6,
		PreferredMethod:    MethodSemanticSimilarity,
		EnableFallback:     true,
		ExactMatchWeight:   0.7,
	}
}
