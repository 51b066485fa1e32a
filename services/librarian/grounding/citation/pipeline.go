// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package citation scores whether a claim is grounded in a span of a
// source document.
//
// Three methods are available: exact_match, entailment and
// semantic_similarity. The preferred method runs first; if it does not
// ground the claim and fallback is enabled, the others run in fixed order
// until one grounds the claim. A relationship contradiction caps every
// method's score, so a contradicted claim is never grounded.
package citation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/librarian/services/librarian/grounding"
	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
)

// DefaultBatchConcurrency bounds parallel verifications in VerifyBatch.
const DefaultBatchConcurrency = 8

// Pipeline is the citation verification pipeline.
//
// Thread Safety: Safe for concurrent use.
type Pipeline struct {
	config *Config
	logger *slog.Logger
	stats  grounding.Counter
}

// New creates a pipeline. A nil config uses DefaultConfig; an unknown
// preferred method falls back to semantic_similarity.
func New(config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.PreferredMethod.Valid() {
		cfg := *config
		cfg.PreferredMethod = MethodSemanticSimilarity
		config = &cfg
	}
	return &Pipeline{config: config, logger: slog.Default()}
}

// Name returns the component name for logging and metrics.
func (p *Pipeline) Name() string {
	return grounding.ComponentCitation
}

// GroundingStats returns {total, grounded, accuracy} for this pipeline.
func (p *Pipeline) GroundingStats() grounding.Stats {
	return p.stats.Snapshot()
}

// ResetStats zeroes the running statistics.
func (p *Pipeline) ResetStats() {
	p.stats.Reset()
}

// Verify scores one citation against its source document.
//
// Inputs:
//   - ctx: Used for tracing only; verification does no I/O.
//   - c: The citation. Its span selects the text to check.
//   - sourceDocument: Full text of the cited document.
//
// Outputs:
//   - VerificationResult: Always populated. Empty claims or documents
//     produce an ungrounded result with score 0 and no method.
func (p *Pipeline) Verify(ctx context.Context, c Citation, sourceDocument string) VerificationResult {
	start := time.Now()
	ctx, span := grounding.StartVerifySpan(ctx, grounding.ComponentCitation, "Verify")
	defer span.End()

	result := p.verify(c, sourceDocument)

	p.stats.Record(result.IsGrounded)
	if result.Contradiction != nil {
		p.logger.Debug("citation contradicted by source",
			slog.String("source_id", c.SourceID),
			slog.String("contradiction", result.Contradiction.String()))
		grounding.RecordContradiction(ctx, grounding.ComponentCitation, string(result.Contradiction.Claim.Kind))
	}
	grounding.RecordVerification(ctx, grounding.ComponentCitation, result.IsGrounded, result.GroundingScore, time.Since(start))
	grounding.SetSpanResult(span, result.IsGrounded, result.GroundingScore)
	return result
}

// VerifyBatch verifies citations against one document concurrently.
// Results are returned in input order.
func (p *Pipeline) VerifyBatch(ctx context.Context, citations []Citation, sourceDocument string) []VerificationResult {
	results := make([]VerificationResult, len(citations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultBatchConcurrency)
	for i, c := range citations {
		g.Go(func() error {
			results[i] = p.Verify(gctx, c, sourceDocument)
			return nil
		})
	}
	// Verify never fails, so Wait only synchronizes.
	_ = g.Wait()
	return results
}

func (p *Pipeline) verify(c Citation, sourceDocument string) VerificationResult {
	result := VerificationResult{
		Citation: c,
		Evidence: []string{},
		Attempts: []Attempt{},
	}
	if strings.TrimSpace(c.Claim) == "" || strings.TrimSpace(sourceDocument) == "" {
		result.Evidence = append(result.Evidence, "empty claim or source document")
		result.Confidence = confidence.Absent(confidence.ReasonEmptyInput)
		return result
	}

	text, note := extractSpan(sourceDocument, c.SourceSpan)
	if note != "" {
		result.Evidence = append(result.Evidence, note)
	}
	a := analyze(c.Claim, text)
	if a.contradiction != nil {
		result.Contradiction = a.contradiction
	}

	chosen := a.run(p.config.PreferredMethod, p.config.ExactMatchWeight)
	result.Attempts = append(result.Attempts, chosen)

	if !p.grounded(chosen.Score) && p.config.EnableFallback {
		var best Attempt
		found := false
		for _, m := range fallbackOrder {
			if m == p.config.PreferredMethod {
				continue
			}
			at := a.run(m, p.config.ExactMatchWeight)
			result.Attempts = append(result.Attempts, at)
			if !found || at.Score > best.Score {
				best, found = at, true
			}
			if p.grounded(at.Score) {
				break
			}
		}
		if found {
			chosen = best
		}
	}

	result.Method = chosen.Method
	result.GroundingScore = confidence.Clamp(chosen.Score)
	result.IsGrounded = p.grounded(result.GroundingScore)
	result.Evidence = append(result.Evidence, chosen.Evidence...)
	result.Confidence = confidence.Measured(result.GroundingScore, "citation."+string(chosen.Method))
	return result
}

func (p *Pipeline) grounded(score float64) bool {
	return score > 0 && score >= p.config.GroundingThreshold
}

// extractSpan returns the spanned text of doc. Spans are clamped to the
// document; an empty or inverted span selects the whole document.
func extractSpan(doc string, s Span) (string, string) {
	runes := []rune(doc)
	if s.Start == 0 && s.End == 0 {
		return doc, ""
	}
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return doc, fmt.Sprintf("invalid span [%d,%d); using whole document", s.Start, s.End)
	}
	text := string(runes[start:end])
	if strings.TrimSpace(text) == "" {
		return doc, fmt.Sprintf("span [%d,%d) is blank; using whole document", s.Start, s.End)
	}
	if start != s.Start || end != s.End {
		return text, fmt.Sprintf("span clamped to [%d,%d)", start, end)
	}
	return text, ""
}
