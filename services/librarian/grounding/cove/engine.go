// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cove implements chain-of-verification: a draft answer is split
// into checkable claims, each claim is turned into a question, the
// question is answered from context alone, and the draft is revised or
// hedged where the answers disagree with it.
//
// The four stages (baseline, plan, answer, synthesize) run strictly in
// order. No stage calls a model; all matching is lexical.
package cove

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/librarian/services/librarian/grounding"
	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

const (
	// minKeywordLen is the shortest query token used to pick baseline lines.
	minKeywordLen = 4

	// fallbackBaselineLines is how many context lines form the baseline
	// when no line shares a keyword with the query.
	fallbackBaselineLines = 5

	// fullContextItems is the context size at which overall confidence is
	// no longer scaled down.
	fullContextItems = 5

	answerConcurrency = 8

	overallFormula = "0.6*mean_answer_confidence+0.4*consistency_rate"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine runs chain-of-verification.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	config *Config
	logger *slog.Logger
	stats  grounding.Counter
}

// New creates an engine. A nil config uses DefaultConfig.
func New(config *Config, opts ...Option) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Engine{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the component name for logging and metrics.
func (e *Engine) Name() string {
	return grounding.ComponentCoVe
}

// Stats returns the running verification statistics.
func (e *Engine) Stats() grounding.Stats {
	return e.stats.Snapshot()
}

// ResetStats zeroes the running statistics.
func (e *Engine) ResetStats() {
	e.stats.Reset()
}

// Verify runs the four stages over in.
//
// Inputs:
//
//	ctx - Cancels the answer stage.
//	in - Query, context and optional baseline.
//
// Outputs:
//
//	*Result - Final response, questions, answers and overall confidence.
//	error - Only the context error.
func (e *Engine) Verify(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	ctx, span := grounding.StartVerifySpan(ctx, grounding.ComponentCoVe, "Verify")
	defer span.End()

	result, err := e.run(ctx, in)
	if err != nil {
		grounding.SetSpanError(span, err)
		return nil, err
	}

	score := result.Confidence.Scalar()
	e.stats.Record(result.Verified)
	grounding.RecordVerification(ctx, grounding.ComponentCoVe, result.Verified, score, time.Since(start))
	for _, inc := range result.Inconsistencies {
		grounding.RecordIssue(ctx, grounding.ComponentCoVe, string(inc.Resolution))
	}
	grounding.SetSpanResult(span, result.Verified, score)

	e.logger.Debug("chain of verification complete",
		slog.Int("questions", len(result.Questions)),
		slog.Int("inconsistencies", len(result.Inconsistencies)),
		slog.String("confidence", result.Confidence.String()))
	return result, nil
}

func (e *Engine) run(ctx context.Context, in Input) (*Result, error) {
	sm := newStageMachine()
	lines := contextLines(in.Context)
	items := countItems(in.Context)

	baseline := in.BaselineResponse
	if strings.TrimSpace(baseline) == "" {
		baseline = synthesizeBaseline(in.Query, lines)
	}
	result := &Result{
		Query:            in.Query,
		BaselineResponse: baseline,
		Questions:        []VerificationQuestion{},
		Answers:          []VerificationAnswer{},
		Inconsistencies:  []Inconsistency{},
	}

	if err := sm.advance(StagePlan); err != nil {
		return nil, err
	}
	result.Questions = e.plan(baseline)

	if err := sm.advance(StageAnswer); err != nil {
		return nil, err
	}
	answers, err := e.answerAll(ctx, result.Questions, lines)
	if err != nil {
		return nil, err
	}
	result.Answers = answers

	if err := sm.advance(StageSynthesize); err != nil {
		return nil, err
	}
	result.Confidence = overallConfidence(answers, items)
	result.Verified = !result.Confidence.IsAbsent() &&
		result.Confidence.Scalar() >= e.config.MinConfidenceThreshold
	e.synthesize(result)

	if err := sm.advance(StageDone); err != nil {
		return nil, err
	}
	result.Stages = sm.visited
	return result, nil
}

// contextLines splits every context item into trimmed non-empty lines.
func contextLines(items []string) []string {
	var lines []string
	for _, item := range items {
		for _, l := range strings.Split(item, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}
	return lines
}

func countItems(items []string) int {
	n := 0
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			n++
		}
	}
	return n
}

// synthesizeBaseline keeps the context lines sharing a keyword of at
// least minKeywordLen characters with the query, or the first
// fallbackBaselineLines lines when none do.
func synthesizeBaseline(query string, lines []string) string {
	keywords := make(map[string]bool)
	for _, tok := range patterns.Tokenize(query) {
		if len(tok) >= minKeywordLen && !patterns.IsStopword(tok) {
			keywords[tok] = true
		}
	}

	var kept []string
	for _, l := range lines {
		for _, tok := range patterns.Tokenize(l) {
			if keywords[tok] {
				kept = append(kept, l)
				break
			}
		}
	}
	if len(kept) == 0 {
		kept = lines
		if len(kept) > fallbackBaselineLines {
			kept = kept[:fallbackBaselineLines]
		}
	}
	return strings.Join(kept, "\n")
}

// plan extracts at most MaxVerificationQuestions questions, one per
// sentence, from the first matching claim rule. Claims are deduplicated
// on their normalized text.
func (e *Engine) plan(baseline string) []VerificationQuestion {
	questions := []VerificationQuestion{}
	seen := make(map[string]bool)
	for _, sentence := range patterns.SplitSentences(baseline) {
		if len(questions) >= e.config.MaxVerificationQuestions {
			break
		}
		claim, rule, ok := patterns.MatchClaim(sentence)
		if !ok {
			continue
		}
		key := patterns.Normalize(claim.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		questions = append(questions, VerificationQuestion{
			ID:            fmt.Sprintf("q%d", len(questions)+1),
			Question:      rule.QuestionFor(claim),
			TargetClaim:   claim.Text,
			Kind:          claim.Kind,
			ExpectedShape: claim.Shape,
			claim:         claim,
			sentence:      sentence,
		})
	}
	return questions
}

// answerAll answers every question concurrently. Answers keep question
// order.
func (e *Engine) answerAll(ctx context.Context, questions []VerificationQuestion, lines []string) ([]VerificationAnswer, error) {
	answers := make([]VerificationAnswer, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(answerConcurrency)
	for i, q := range questions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			answers[i] = answerQuestion(q, lines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// overallConfidence combines answer confidences and the consistency rate,
// scaled by how much context was available.
func overallConfidence(answers []VerificationAnswer, contextItems int) confidence.Value {
	if contextItems == 0 {
		return confidence.Absent(confidence.ReasonNoContext)
	}
	if len(answers) == 0 {
		return confidence.Absent(confidence.ReasonNoClaims)
	}
	var sum float64
	consistent := 0
	for _, a := range answers {
		sum += a.Confidence
		if a.ConsistentWithBaseline {
			consistent++
		}
	}
	mean := sum / float64(len(answers))
	rate := float64(consistent) / float64(len(answers))
	scale := float64(contextItems) / fullContextItems
	if scale > 1 {
		scale = 1
	}
	return confidence.Derived(overallFormula, (0.6*mean+0.4*rate)*scale,
		confidence.Input{Name: "mean_answer_confidence", Value: mean},
		confidence.Input{Name: "consistency_rate", Value: rate},
		confidence.Input{Name: "context_scale", Value: scale},
	)
}
