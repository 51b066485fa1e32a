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
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

const (
	// reviseThreshold is the answer confidence at which a disputed claim
	// is rewritten.
	reviseThreshold = 0.7

	// hedgeThreshold is the answer confidence at which a disputed claim
	// is hedged instead of left alone.
	hedgeThreshold = 0.4

	unverifiedNote = "\n\n[Note: parts of this answer could not be verified against the provided context.]"
)

var (
	numberToken = regexp.MustCompile(`(?i)\b(` + patterns.NumberAlternation + `)\b`)
	trailingBe  = regexp.MustCompile(`(?i)\b(is|are)\s+$`)
)

type hedgeForm int

const (
	hedgeAdverb hedgeForm = iota
	hedgeModal
	hedgeInfinitive
)

var hedgeForms = map[string]hedgeForm{
	"likely":     hedgeAdverb,
	"possibly":   hedgeAdverb,
	"may":        hedgeModal,
	"might":      hedgeModal,
	"appears to": hedgeInfinitive,
	"seems to":   hedgeInfinitive,
}

// hedgeFor picks a hedge by confidence bucket. Stronger evidence gets a
// weaker qualifier.
func hedgeFor(conf float64) string {
	switch {
	case conf >= 0.6:
		return "likely"
	case conf >= 0.5:
		return "appears to"
	case conf >= 0.45:
		return "may"
	default:
		return "might"
	}
}

// synthesize applies revisions and hedges for every answer that disagrees
// with the baseline, and sets FinalResponse.
func (e *Engine) synthesize(r *Result) {
	response := r.BaselineResponse
	for i, a := range r.Answers {
		if a.ConsistentWithBaseline {
			continue
		}
		q := r.Questions[i]
		inc := Inconsistency{
			QuestionID:    q.ID,
			OriginalClaim: q.TargetClaim,
			VerifiedClaim: q.TargetClaim,
			Resolution:    ResolutionKeptOriginal,
			Confidence:    a.Confidence,
		}

		switch {
		case a.Confidence >= reviseThreshold:
			if revised, ok := revise(q, a); ok {
				response = strings.Replace(response, q.TargetClaim, revised, 1)
				inc.VerifiedClaim = revised
				inc.Resolution = ResolutionRevised
				r.Revised++
			}
		case a.Confidence >= hedgeThreshold:
			if !e.config.AddHedgingForLowConfidence || patterns.ContainsHedge(q.sentence) {
				break
			}
			if hedged, ok := hedgeClaim(q.claim, hedgeFor(a.Confidence)); ok {
				response = strings.Replace(response, q.TargetClaim, hedged, 1)
				inc.VerifiedClaim = hedged
				r.Hedged++
			}
		default:
			if a.Citation == "" {
				inc.Resolution = ResolutionRemoved
			}
		}
		r.Inconsistencies = append(r.Inconsistencies, inc)
	}

	if e.config.AddHedgingForLowConfidence && r.Revised == 0 && r.Hedged == 0 && e.needsNote(r) {
		response += unverifiedNote
	}
	r.FinalResponse = response
}

func (e *Engine) needsNote(r *Result) bool {
	if r.Confidence.IsAbsent() {
		return r.Confidence.Reason == confidence.ReasonNoContext && len(r.Questions) > 0
	}
	return r.Confidence.Scalar() < e.config.HedgingThreshold
}

// revise rewrites a claim from a high-confidence answer. Counts are
// replaced in place with digits; other corrections are appended as a
// verified note.
func revise(q VerificationQuestion, a VerificationAnswer) (string, bool) {
	if q.claim.HasNumber() && a.number >= 0 {
		for _, loc := range numberToken.FindAllStringIndex(q.TargetClaim, -1) {
			n, ok := patterns.ParseCount(q.TargetClaim[loc[0]:loc[1]])
			if ok && n == q.claim.Number {
				return q.TargetClaim[:loc[0]] + strconv.Itoa(a.number) + q.TargetClaim[loc[1]:], true
			}
		}
		return "", false
	}
	note := strings.TrimRight(strings.TrimSpace(a.Answer), ".;:, ")
	if note == "" {
		return "", false
	}
	return q.TargetClaim + " [Verified: " + note + "]", true
}

// hedgeClaim inserts hedge before the claim's verb. Modal and infinitive
// hedges take the base verb ("may return", "appears to be"); adverbs keep
// it ("likely returns", "is likely").
func hedgeClaim(c patterns.Claim, hedge string) (string, bool) {
	fields := strings.Fields(c.Verb)
	if len(fields) == 0 {
		return "", false
	}
	loc := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(fields[0]) + `\b`).FindStringIndex(c.Text)
	if loc == nil {
		return "", false
	}
	head, verb, tail := c.Text[:loc[0]], c.Text[loc[0]:loc[1]], c.Text[loc[1]:]
	if m := trailingBe.FindStringSubmatchIndex(head); m != nil && !isBe(verb) {
		verb = head[m[2]:m[3]]
		tail = c.Text[m[3]:]
		head = head[:m[0]]
	}

	var phrase string
	switch hedgeForms[hedge] {
	case hedgeModal, hedgeInfinitive:
		base := "be"
		if !isBe(verb) {
			base = patterns.BaseVerb(verb)
		}
		phrase = hedge + " " + base
	default:
		if isBe(verb) {
			phrase = verb + " " + hedge
		} else {
			phrase = hedge + " " + verb
		}
	}
	return head + phrase + tail, true
}

func isBe(verb string) bool {
	v := strings.ToLower(verb)
	return v == "is" || v == "are"
}
