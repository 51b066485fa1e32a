// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cove

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

const (
	noContextConfidence    = 0.1
	noSupportConfidence    = 0.2
	noCountConfidence      = 0.3
	notConfirmedConfidence = 0.4

	// booleanOverlap is the claim-term overlap needed to confirm a
	// boolean claim.
	booleanOverlap = 0.5

	// factualOverlap is the claim-term overlap an extracted sentence needs
	// to agree with a factual claim.
	factualOverlap = 0.5

	maxAnswerConfidence = 0.95

	answerConfirmed    = "confirmed"
	answerNotConfirmed = "not confirmed"
)

// answerQuestion answers q from the context lines alone.
func answerQuestion(q VerificationQuestion, lines []string) VerificationAnswer {
	a := VerificationAnswer{QuestionID: q.ID, number: -1}
	if len(lines) == 0 {
		a.Answer = "unable to verify: no context available"
		a.Confidence = noContextConfidence
		return a
	}

	claimTerms := patterns.KeyTerms(q.TargetClaim)
	matched := matchLines(patterns.KeyTerms(q.Question+" "+q.TargetClaim), lines)
	if len(matched) == 0 {
		a.Answer = "no supporting context found"
		a.Confidence = noSupportConfidence
		return a
	}

	switch q.ExpectedShape {
	case patterns.ShapeNumeric:
		answerNumeric(&a, q.claim, claimTerms, matched)
	case patterns.ShapeBoolean:
		answerBoolean(&a, claimTerms, matched)
	default:
		answerFactual(&a, claimTerms, matched)
	}
	a.Confidence = confidence.Clamp(a.Confidence)
	a.ConsistentWithBaseline = consistentWithClaim(q.claim, a, claimTerms)
	return a
}

// matchLines returns the lines sharing at least one term, ordered by the
// number of shared terms. Ties keep context order.
func matchLines(terms, lines []string) []string {
	type scored struct {
		line  string
		score int
	}
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	var hits []scored
	for _, l := range lines {
		seen := make(map[string]bool)
		n := 0
		for _, tok := range patterns.Tokenize(l) {
			if set[tok] && !seen[tok] {
				seen[tok] = true
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{line: l, score: n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.line
	}
	return out
}

// unitCount builds a matcher for a count followed, within two words, by
// the unit noun in singular or plural form.
func unitCount(unit string) *regexp.Regexp {
	stem := unit
	if len(stem) > 3 {
		stem = strings.TrimSuffix(stem, "s")
	}
	return regexp.MustCompile(`(?i)\b(` + patterns.NumberAlternation + `)\s+(?:[a-z_]+\s+){0,2}?` +
		regexp.QuoteMeta(stem) + `[a-z]*\b`)
}

func answerNumeric(a *VerificationAnswer, claim patterns.Claim, claimTerms, matched []string) {
	re := unitCount(claim.Unit)
	for _, l := range matched {
		m := re.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		n, ok := patterns.ParseCount(m[1])
		if !ok {
			continue
		}
		overlap := patterns.TermOverlap(claimTerms, patterns.Tokenize(l))
		a.number = n
		a.Answer = fmt.Sprintf("%d %s", n, claim.Unit)
		a.Citation = l
		a.Confidence = math.Min(maxAnswerConfidence, 0.45+0.5*overlap)
		a.Evidence = []string{fmt.Sprintf("count %q found; claim term overlap %.2f", m[0], overlap)}
		return
	}
	a.Answer = fmt.Sprintf("count of %s not found in context", claim.Unit)
	a.Confidence = noCountConfidence
}

func answerBoolean(a *VerificationAnswer, claimTerms, matched []string) {
	overlap := patterns.TermOverlap(claimTerms, patterns.Tokenize(strings.Join(matched, " ")))
	a.Citation = matched[0]
	a.Evidence = []string{fmt.Sprintf("claim term overlap %.2f across %d matched lines", overlap, len(matched))}
	if overlap >= booleanOverlap {
		a.Answer = answerConfirmed
		a.Confidence = math.Min(maxAnswerConfidence, 0.5+0.5*overlap)
		return
	}
	a.Answer = answerNotConfirmed
	a.Confidence = notConfirmedConfidence
}

func answerFactual(a *VerificationAnswer, claimTerms, matched []string) {
	best, bestOverlap := "", -1.0
	for _, l := range matched {
		for _, s := range patterns.SplitSentences(l) {
			ov := patterns.TermOverlap(claimTerms, patterns.Tokenize(s))
			if ov > bestOverlap {
				best, bestOverlap = s, ov
			}
		}
	}
	if bestOverlap < 0 {
		bestOverlap = 0
	}
	a.Answer = best
	a.Citation = best
	a.Confidence = 0.3 + 0.6*bestOverlap
	a.Evidence = []string{fmt.Sprintf("best sentence overlap %.2f", bestOverlap)}
}

// consistentWithClaim compares an answer to the baseline claim using term
// overlap, numeric agreement and negative-result phrasing.
func consistentWithClaim(claim patterns.Claim, a VerificationAnswer, claimTerms []string) bool {
	if patterns.ContainsNegative(a.Answer) {
		return false
	}
	switch claim.Shape {
	case patterns.ShapeNumeric:
		return claim.HasNumber() && a.number == claim.Number
	case patterns.ShapeBoolean:
		return a.Answer == answerConfirmed
	}

	if patterns.TermOverlap(claimTerms, patterns.Tokenize(a.Answer)) < factualOverlap {
		return false
	}
	if claim.Object != "" && !patterns.ContainsWord(a.Answer, strings.Trim(claim.Object, "`*[]")) {
		return false
	}
	claimCounts := patterns.FindCounts(claim.Text)
	answerCounts := patterns.FindCounts(a.Answer)
	if len(claimCounts) > 0 && len(answerCounts) > 0 && !shareValue(claimCounts, answerCounts) {
		return false
	}
	return true
}

func shareValue(a, b []int) bool {
	set := make(map[int]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}
