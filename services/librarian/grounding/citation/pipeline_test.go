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
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
)

func cite(claim string) Citation {
	return Citation{Claim: claim, SourceID: "doc-1", Confidence: 0.8}
}

func withPreferred(m Method) *Config {
	cfg := DefaultConfig()
	cfg.PreferredMethod = m
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.6, cfg.GroundingThreshold)
	assert.Equal(t, MethodSemanticSimilarity, cfg.PreferredMethod)
	assert.True(t, cfg.EnableFallback)
	assert.Equal(t, 0.7, cfg.ExactMatchWeight)
}

func TestNew_InvalidPreferredMethod(t *testing.T) {
	p := New(&Config{PreferredMethod: "magic", GroundingThreshold: 0.6})
	assert.Equal(t, MethodSemanticSimilarity, p.config.PreferredMethod)
}

func TestVerify_ExactMatch(t *testing.T) {
	p := New(withPreferred(MethodExactMatch))
	res := p.Verify(context.Background(), cite("Parser returns a Token"), "// Parser returns a Token for each lexeme.")

	assert.True(t, res.IsGrounded)
	assert.Equal(t, 1.0, res.GroundingScore)
	assert.Equal(t, MethodExactMatch, res.Method)
	assert.Len(t, res.Attempts, 1)
	assert.Equal(t, confidence.KindMeasured, res.Confidence.Kind)
}

func TestVerify_ContradictionRegardlessOfMethod(t *testing.T) {
	source := "export class ClassX extends Other {\n  render() {}\n}"
	for _, m := range []Method{MethodExactMatch, MethodEntailment, MethodSemanticSimilarity} {
		t.Run(string(m), func(t *testing.T) {
			p := New(withPreferred(m))
			res := p.Verify(context.Background(), cite("ClassX extends Base"), source)

			assert.False(t, res.IsGrounded)
			assert.LessOrEqual(t, res.GroundingScore, 0.3)
			require.NotNil(t, res.Contradiction)
			assert.Equal(t, "Base", res.Contradiction.Claim.Object)
			assert.Equal(t, "Other", res.Contradiction.Source.Object)
			for _, at := range res.Attempts {
				assert.LessOrEqual(t, at.Score, 0.1)
			}
		})
	}
}

func TestVerify_SameRelationshipNotContradiction(t *testing.T) {
	p := New(withPreferred(MethodEntailment))
	res := p.Verify(context.Background(), cite("ClassX extends Base"), "class ClassX extends Base {}")

	assert.True(t, res.IsGrounded)
	assert.Nil(t, res.Contradiction)
	assert.Equal(t, 1.0, res.GroundingScore)
}

func TestVerify_Entailment(t *testing.T) {
	p := New(withPreferred(MethodEntailment))
	source := "type Store struct{}\n\n// Store implements Reader by wrapping a file."
	res := p.Verify(context.Background(), cite("Store implements Reader"), source)

	assert.True(t, res.IsGrounded)
	assert.Equal(t, MethodEntailment, res.Method)
	assert.Contains(t, res.Evidence, "relationship stated: Store implements Reader")
}

func TestVerify_EntailmentCooccurrenceIsWeak(t *testing.T) {
	cfg := withPreferred(MethodEntailment)
	cfg.EnableFallback = false
	p := New(cfg)
	res := p.Verify(context.Background(), cite("Store implements Reader"), "Store and Reader are both declared here.")

	assert.False(t, res.IsGrounded)
	assert.InDelta(t, 0.4, res.GroundingScore, 1e-9)
}

func TestVerify_SemanticSimilarity(t *testing.T) {
	p := New(nil)
	res := p.Verify(context.Background(), cite("The cache stores parsed files"), "The cache stores parsed files in memory.")

	assert.True(t, res.IsGrounded)
	assert.Equal(t, MethodSemanticSimilarity, res.Method)
	assert.InDelta(t, 1.0, res.GroundingScore, 1e-9)
}

func TestVerify_FallbackStopsAtFirstGrounded(t *testing.T) {
	p := New(withPreferred(MethodEntailment))
	claim := "the cache expires entries after ten minutes"
	res := p.Verify(context.Background(), cite(claim), "Note: "+claim+".")

	assert.True(t, res.IsGrounded)
	assert.Equal(t, MethodExactMatch, res.Method)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, MethodEntailment, res.Attempts[0].Method)
	assert.Equal(t, MethodExactMatch, res.Attempts[1].Method)
}

func TestVerify_FallbackDisabled(t *testing.T) {
	cfg := withPreferred(MethodEntailment)
	cfg.EnableFallback = false
	p := New(cfg)
	claim := "the cache expires entries after ten minutes"
	res := p.Verify(context.Background(), cite(claim), "Note: "+claim+".")

	assert.False(t, res.IsGrounded)
	assert.Equal(t, MethodEntailment, res.Method)
	assert.Len(t, res.Attempts, 1)
}

func TestVerify_UngroundedKeepsBestFallback(t *testing.T) {
	p := New(withPreferred(MethodExactMatch))
	res := p.Verify(context.Background(), cite("Widget renders charts quickly"), "unrelated text about databases")

	assert.False(t, res.IsGrounded)
	assert.Len(t, res.Attempts, 3)
	assert.NotEqual(t, MethodExactMatch, res.Method)
}

func TestVerify_EmptyInputs(t *testing.T) {
	p := New(nil)
	for _, tc := range []struct{ claim, doc string }{
		{"", "some document"},
		{"a claim", ""},
		{"  ", "  "},
	} {
		res := p.Verify(context.Background(), cite(tc.claim), tc.doc)
		assert.False(t, res.IsGrounded)
		assert.Equal(t, 0.0, res.GroundingScore)
		assert.Equal(t, Method(""), res.Method)
		assert.Empty(t, res.Attempts)
		assert.True(t, res.Confidence.IsAbsent())
	}
	stats := p.GroundingStats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 0.0, stats.Accuracy)
}

func TestVerify_SpanSelectsText(t *testing.T) {
	p := New(withPreferred(MethodExactMatch))
	doc := "The parser handles unicode. The lexer ignores comments."
	c := cite("The lexer ignores comments")

	c.SourceSpan = Span{Start: 0, End: 27}
	res := p.Verify(context.Background(), c, doc)
	assert.NotEqual(t, 1.0, res.Attempts[0].Score, "claim is outside the span")

	c.SourceSpan = Span{Start: 28, End: 500}
	res = p.Verify(context.Background(), c, doc)
	assert.True(t, res.IsGrounded)
	assert.Equal(t, 1.0, res.GroundingScore)
}

func TestExtractSpan(t *testing.T) {
	doc := "héllo world"

	text, note := extractSpan(doc, Span{Start: 0, End: 5})
	assert.Equal(t, "héllo", text)
	assert.Empty(t, note)

	text, note = extractSpan(doc, Span{Start: 10, End: 2})
	assert.Equal(t, doc, text)
	assert.Contains(t, note, "invalid span")

	text, note = extractSpan(doc, Span{Start: -5, End: 100})
	assert.Equal(t, doc, text)
	assert.Contains(t, note, "clamped")

	text, _ = extractSpan(doc, Span{})
	assert.Equal(t, doc, text)
}

func TestVerifyBatch_PreservesOrder(t *testing.T) {
	p := New(withPreferred(MethodExactMatch))
	doc := "alpha beta gamma delta"
	var cs []Citation
	for i := 0; i < 20; i++ {
		cs = append(cs, cite(fmt.Sprintf("claim number %d", i)))
	}
	cs = append(cs, cite("beta gamma"))

	results := p.VerifyBatch(context.Background(), cs, doc)
	require.Len(t, results, len(cs))
	for i := range cs {
		assert.Equal(t, cs[i].Claim, results[i].Citation.Claim)
	}
	assert.True(t, results[len(results)-1].IsGrounded)

	stats := p.GroundingStats()
	assert.Equal(t, 21, stats.Total)
	assert.Equal(t, 1, stats.Verified)
	assert.InDelta(t, 1.0/21.0, stats.Accuracy, 1e-12)
}

func TestScoresInRange(t *testing.T) {
	p := New(nil)
	claims := []string{
		"Server has a method Start",
		"`Open` returns an error",
		"async function load",
		"x",
		"ClassX extends Base and implements Runner and returns string",
	}
	doc := "func (s *Server) Start() error {}\nfunc Open(path string) error {}\nclass ClassX extends Base implements Runner {}"
	for _, c := range claims {
		res := p.Verify(context.Background(), cite(c), doc)
		assert.GreaterOrEqual(t, res.GroundingScore, 0.0)
		assert.LessOrEqual(t, res.GroundingScore, 1.0)
		for _, at := range res.Attempts {
			assert.GreaterOrEqual(t, at.Score, 0.0)
			assert.LessOrEqual(t, at.Score, 1.0)
		}
	}
}
