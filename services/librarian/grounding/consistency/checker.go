// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package consistency asks the same question several ways and checks that
// the answers agree.
//
// A base query is expanded into paraphrases from fixed template families.
// An external AnswerProvider answers every paraphrase, facts are
// extracted from each answer, and pairs of answers are compared in a
// fixed priority: direct contradictions, then partial conflicts, then
// fact-set differences.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/librarian/services/librarian/grounding"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

const (
	// richnessRatio is how many times more facts one answer needs before
	// the difference is reported.
	richnessRatio = 1.5

	// minUniqueFacts is the unique-fact count needed for a richness
	// violation.
	minUniqueFacts = 2

	// unmatchedRatio is the share of the larger fact set that may go
	// unmatched before answers are considered to disagree.
	unmatchedRatio = 0.6

	// minUnmatched is the absolute unmatched count needed for that check.
	minUnmatched = 3

	// nameMismatch is the parameter-name mismatch ratio for a partial
	// conflict.
	nameMismatch = 0.5

	// fuzzyOverlap is the token overlap at which two facts match.
	fuzzyOverlap = 0.5
)

var errEmptyAnswer = errors.New("consistency: provider returned an empty answer")

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// Checker is the consistency checker.
//
// Thread Safety: Safe for concurrent use.
type Checker struct {
	config *Config
	logger *slog.Logger
	stats  grounding.Counter
}

// New creates a checker. A nil config uses DefaultConfig.
func New(config *Config, opts ...Option) *Checker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrency <= 0 {
		cfg := *config
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
		config = &cfg
	}
	c := &Checker{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the component name for logging and metrics.
func (c *Checker) Name() string {
	return grounding.ComponentConsistency
}

// Stats returns the running statistics. A set counts as verified when it
// is consistent.
func (c *Checker) Stats() grounding.Stats {
	return c.stats.Snapshot()
}

// ResetStats zeroes the running statistics.
func (c *Checker) ResetStats() {
	c.stats.Reset()
}

// analyzed pairs an answer with its typed and normalized facts.
type analyzed struct {
	answer Answer
	facts  []fact
	norm   []string
}

func analyze(a Answer) analyzed {
	facts := extractTyped(a.Text)
	if a.Facts == nil {
		a.Facts = make([]string, 0, len(facts))
		for _, f := range facts {
			a.Facts = append(a.Facts, f.String())
		}
	}
	norm := make([]string, 0, len(a.Facts))
	for _, f := range a.Facts {
		if n := patterns.NormalizeFact(f); n != "" {
			norm = append(norm, n)
		}
	}
	return analyzed{answer: a, facts: facts, norm: norm}
}

type pairCheck func(a, b analyzed) (ConflictType, string, bool)

// CheckConsistency compares every pair of answers and returns the first
// violation by priority, or nil when the answers agree. Fewer than two
// answers are consistent.
//
// Outputs:
//
//	*Violation - The violation with Topic and CanonicalQuery unset, or nil.
func (c *Checker) CheckConsistency(answers []Answer) *Violation {
	v := c.check(answers)
	c.stats.Record(v == nil)
	return v
}

func (c *Checker) check(answers []Answer) *Violation {
	if len(answers) < 2 {
		return nil
	}
	items := make([]analyzed, len(answers))
	for i, a := range answers {
		items[i] = analyze(a)
	}

	levels := []struct {
		severity Severity
		check    pairCheck
	}{
		{SeverityHigh, directContradiction},
		{SeverityMedium, partialConflict},
		{SeverityLow, factDifference},
	}
	for _, level := range levels {
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				kind, why, ok := level.check(items[i], items[j])
				if !ok {
					continue
				}
				return &Violation{
					Answers:      []Answer{items[i].answer, items[j].answer},
					ConflictType: kind,
					Severity:     level.severity,
					Explanation:  why,
				}
			}
		}
	}
	return nil
}

func factsOf(items []fact, kind factKind) []fact {
	var out []fact
	for _, f := range items {
		if f.kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// directContradiction: different parameter or return-value counts,
// disjoint return types, or different files for the same entity.
func directContradiction(a, b analyzed) (ConflictType, string, bool) {
	for _, kind := range []factKind{factParamCount, factReturnCount} {
		fa, fb := factsOf(a.facts, kind), factsOf(b.facts, kind)
		if len(fa) > 0 && len(fb) > 0 && !shareCount(fa, fb) {
			what := "parameter"
			if kind == factReturnCount {
				what = "return value"
			}
			return ConflictDirect, fmt.Sprintf("answers state different %s counts: %d vs %d",
				what, fa[0].count, fb[0].count), true
		}
	}

	ra, rb := factsOf(a.facts, factReturnType), factsOf(b.facts, factReturnType)
	if len(ra) > 0 && len(rb) > 0 && !anyPair(ra, rb, func(x, y fact) bool {
		return patterns.CanonicalType(x.value) == patterns.CanonicalType(y.value)
	}) {
		return ConflictDirect, fmt.Sprintf("answers state different return types: %s vs %s",
			ra[0].value, rb[0].value), true
	}

	la, lb := factsOf(a.facts, factFile), factsOf(b.facts, factFile)
	if len(la) > 0 && len(lb) > 0 && !anyPair(la, lb, func(x, y fact) bool {
		return sameFile(x.value, y.value)
	}) {
		return ConflictDirect, fmt.Sprintf("answers place the definition in different files: %s vs %s",
			la[0].value, lb[0].value), true
	}
	return "", "", false
}

// partialConflict: differing item counts, a count that disagrees with an
// enumerated list, or parameter name sets differing by at least half.
func partialConflict(a, b analyzed) (ConflictType, string, bool) {
	for _, ca := range factsOf(a.facts, factItemCount) {
		for _, cb := range factsOf(b.facts, factItemCount) {
			if ca.unit == cb.unit && ca.count != cb.count {
				return ConflictPartial, fmt.Sprintf("answers count %s differently: %d vs %d",
					ca.unit, ca.count, cb.count), true
			}
		}
	}

	if why, ok := countVersusList(a, b); ok {
		return ConflictPartial, why, true
	}
	if why, ok := countVersusList(b, a); ok {
		return ConflictPartial, why, true
	}

	na, nb := factsOf(a.facts, factParamNames), factsOf(b.facts, factParamNames)
	if len(na) > 0 && len(nb) > 0 {
		if r := mismatch(na[0].items, nb[0].items); r >= nameMismatch {
			return ConflictPartial, fmt.Sprintf("parameter names differ (%.0f%% mismatch): %s vs %s",
				r*100, strings.Join(na[0].items, ", "), strings.Join(nb[0].items, ", ")), true
		}
	}
	return "", "", false
}

// countVersusList checks counts stated in a against lists enumerated in b.
// A list is only compared with a count of the same unit.
func countVersusList(a, b analyzed) (string, bool) {
	for _, cnt := range factsOf(a.facts, factItemCount) {
		for _, l := range factsOf(b.facts, factList) {
			if l.unit == cnt.unit && l.count != cnt.count {
				return fmt.Sprintf("one answer states %d %s but another lists %d", cnt.count, cnt.unit, l.count), true
			}
		}
	}
	for _, cnt := range factsOf(a.facts, factParamCount) {
		for _, l := range factsOf(b.facts, factParamNames) {
			if l.count != cnt.count {
				return fmt.Sprintf("one answer states %d parameters but another lists %d", cnt.count, l.count), true
			}
		}
	}
	return "", false
}

// factDifference compares fact sets. The richer answer yields extra_fact
// when it is the later answer and missing_fact when it is the earlier.
func factDifference(a, b analyzed) (ConflictType, string, bool) {
	if len(a.norm) == 0 && len(b.norm) == 0 {
		return "", "", false
	}
	uniqueA := withoutCorroborated(unmatched(a.norm, b.norm), a, b)
	uniqueB := withoutCorroborated(unmatched(b.norm, a.norm), b, a)
	la, lb := float64(len(a.norm)), float64(len(b.norm))

	if len(uniqueB) >= minUniqueFacts && lb >= richnessRatio*la {
		return ConflictExtra, fmt.Sprintf("answer adds %d facts the other lacks: %s",
			len(uniqueB), strings.Join(uniqueB, "; ")), true
	}
	if len(uniqueA) >= minUniqueFacts && la >= richnessRatio*lb {
		return ConflictMissing, fmt.Sprintf("answer omits %d facts the other states: %s",
			len(uniqueA), strings.Join(uniqueA, "; ")), true
	}

	most := max(len(uniqueA), len(uniqueB))
	larger := max(la, lb)
	if most >= minUnmatched && float64(most) > unmatchedRatio*larger {
		return ConflictMissing, fmt.Sprintf("answers share few facts: %d of %.0f unmatched", most, larger), true
	}
	return "", "", false
}

func unmatched(facts, other []string) []string {
	var out []string
	for _, f := range facts {
		found := false
		for _, o := range other {
			if factsMatch(f, o) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, f)
		}
	}
	return out
}

// withoutCorroborated drops from unique the facts of a that b states in
// another form: a count that b enumerates as a list of the same unit and
// length, or a list that b counts.
func withoutCorroborated(unique []string, a, b analyzed) []string {
	if len(unique) == 0 {
		return unique
	}
	agreed := make(map[string]bool)
	for _, f := range a.facts {
		var others []fact
		switch f.kind {
		case factItemCount:
			others = factsOf(b.facts, factList)
		case factList:
			others = factsOf(b.facts, factItemCount)
		default:
			continue
		}
		for _, o := range others {
			if o.unit == f.unit && o.count == f.count {
				agreed[patterns.NormalizeFact(f.String())] = true
				break
			}
		}
	}
	if len(agreed) == 0 {
		return unique
	}
	out := unique[:0:0]
	for _, u := range unique {
		if !agreed[u] {
			out = append(out, u)
		}
	}
	return out
}

// factsMatch compares normalized facts: equal, one containing the other,
// or token overlap of at least fuzzyOverlap.
func factsMatch(x, y string) bool {
	if x == y {
		return true
	}
	if strings.Contains(x, y) || strings.Contains(y, x) {
		return true
	}
	return patterns.TokenSimilarity(x, y) >= fuzzyOverlap
}

func shareCount(a, b []fact) bool {
	return anyPair(a, b, func(x, y fact) bool { return x.count == y.count })
}

func anyPair(a, b []fact, eq func(x, y fact) bool) bool {
	for _, x := range a {
		for _, y := range b {
			if eq(x, y) {
				return true
			}
		}
	}
	return false
}

// mismatch is the symmetric difference of two name sets over their union.
func mismatch(a, b []string) float64 {
	set := make(map[string]int)
	for _, n := range a {
		set[strings.ToLower(n)] |= 1
	}
	for _, n := range b {
		set[strings.ToLower(n)] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	diff := 0
	for _, v := range set {
		if v != 3 {
			diff++
		}
	}
	return float64(diff) / float64(len(set))
}

// RunConsistencyCheck answers every variant of every set and checks each
// set for consistency.
//
// Provider errors and empty answers skip that variant; they are logged,
// counted in SkippedVariants and never fail the run. Variants of one set
// are answered concurrently, up to MaxConcurrency, and keep their order.
//
// Outputs:
//
//	*Report - The aggregated report.
//	error - Only the context error.
func (c *Checker) RunConsistencyCheck(ctx context.Context, sets []QuerySet, provider AnswerProvider) (*Report, error) {
	start := time.Now()
	ctx, span := grounding.StartVerifySpan(ctx, grounding.ComponentConsistency, "RunConsistencyCheck")
	defer span.End()

	report := &Report{ID: uuid.NewString(), Violations: []Violation{}}
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			grounding.SetSpanError(span, err)
			return nil, err
		}
		answers, skipped, err := c.collect(ctx, set, provider)
		if err != nil {
			grounding.SetSpanError(span, err)
			return nil, err
		}
		report.SkippedVariants += skipped
		report.TotalSets++

		v := c.CheckConsistency(answers)
		consistent := v == nil
		grounding.RecordVerification(ctx, grounding.ComponentConsistency, consistent, boolScore(consistent), time.Since(start))
		if consistent {
			report.ConsistentSets++
			continue
		}
		v.Topic = set.Topic
		v.CanonicalQuery = set.CanonicalQuery
		report.Violations = append(report.Violations, *v)
		report.Counts.add(v.ConflictType)
		grounding.RecordIssue(ctx, grounding.ComponentConsistency, string(v.ConflictType))
		c.logger.Info("consistency violation",
			slog.String("topic", set.Topic),
			slog.String("conflict_type", string(v.ConflictType)),
			slog.String("severity", string(v.Severity)))
	}
	if report.TotalSets > 0 {
		report.ConsistencyRate = float64(report.ConsistentSets) / float64(report.TotalSets)
	}
	grounding.SetSpanResult(span, len(report.Violations) == 0, report.ConsistencyRate)
	return report, nil
}

func (c *Checker) collect(ctx context.Context, set QuerySet, provider AnswerProvider) ([]Answer, int, error) {
	type slot struct {
		answer Answer
		ok     bool
	}
	slots := make([]slot, len(set.Variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.MaxConcurrency)
	for i, v := range set.Variants {
		g.Go(func() error {
			text, err := provider.Answer(gctx, v.Query)
			if err == nil && strings.TrimSpace(text) == "" {
				err = errEmptyAnswer
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("answer provider failed; skipping variant",
					slog.String("variant_id", v.ID),
					slog.String("query", v.Query),
					slog.String("error", err.Error()))
				grounding.RecordProviderFailure(gctx, grounding.ComponentConsistency)
				return nil
			}
			slots[i] = slot{answer: Answer{
				VariantID: v.ID,
				Question:  v.Query,
				Text:      text,
				Facts:     ExtractFacts(text),
			}, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	answers := make([]Answer, 0, len(slots))
	skipped := 0
	for _, s := range slots {
		if !s.ok {
			skipped++
			continue
		}
		answers = append(answers, s.answer)
	}
	return answers, skipped, nil
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Summary renders the report for humans.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consistency: %d/%d sets consistent (%.0f%%)\n",
		r.ConsistentSets, r.TotalSets, r.ConsistencyRate*100)
	fmt.Fprintf(&b, "Violations: %d direct, %d partial, %d missing, %d extra\n",
		r.Counts.DirectContradictions, r.Counts.PartialConflicts, r.Counts.MissingFacts, r.Counts.ExtraFacts)
	if r.SkippedVariants > 0 {
		fmt.Fprintf(&b, "Skipped variants: %d\n", r.SkippedVariants)
	}

	sorted := make([]Violation, len(r.Violations))
	copy(sorted, r.Violations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return severityRank[sorted[i].Severity] < severityRank[sorted[j].Severity]
	})
	for _, v := range sorted {
		topic := v.Topic
		if topic == "" {
			topic = v.CanonicalQuery
		}
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", v.Severity, topic, v.ConflictType, v.Explanation)
	}
	return b.String()
}

var severityRank = map[Severity]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}
