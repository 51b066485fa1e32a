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
	"strings"

	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

const (
	// wordOverlapWeight scales the exact-match word-overlap fallback so it
	// never equals a true substring hit.
	wordOverlapWeight = 0.9

	// cooccurrenceCredit is the entailment credit for a relationship whose
	// subject and object both appear without the relationship itself.
	cooccurrenceCredit = 0.4

	// identifierWeight scales identifier presence when a claim states no
	// relationship.
	identifierWeight = 0.7

	// relationshipBonus is added per supported relationship in semantic
	// similarity, up to maxRelationshipBonus.
	relationshipBonus    = 0.1
	maxRelationshipBonus = 0.2

	// contradictionCap bounds every method's score once a contradiction
	// is found.
	contradictionCap = 0.1

	// stemPrefix is the shared prefix length treated as a fuzzy term hit.
	stemPrefix = 5
)

// analysis is computed once per verify call and shared by all methods.
type analysis struct {
	claim         string
	text          string
	claimTerms    []string
	textTerms     []string
	textTokens    map[string]bool
	claimRels     []patterns.Relationship
	sourceRels    []patterns.Relationship
	contradiction *Contradiction
}

func analyze(claim, text string) *analysis {
	a := &analysis{
		claim:      claim,
		text:       text,
		claimTerms: patterns.KeyTerms(claim),
		textTerms:  patterns.KeyTerms(text),
		textTokens: make(map[string]bool),
		claimRels:  patterns.ExtractRelationships(claim),
		sourceRels: patterns.ExtractRelationships(text),
	}
	for _, tok := range patterns.Tokenize(text) {
		a.textTokens[tok] = true
	}
	a.contradiction = findContradiction(a.claimRels, a.sourceRels)
	return a
}

// findContradiction returns the first single-valued claim relationship
// that the source states with a different object and never with the
// claimed one.
func findContradiction(claimRels, sourceRels []patterns.Relationship) *Contradiction {
	for _, cr := range claimRels {
		if !cr.Kind.SingleValued() {
			continue
		}
		var conflict *patterns.Relationship
		agrees := false
		for i := range sourceRels {
			sr := sourceRels[i]
			if !cr.SameSubject(sr) {
				continue
			}
			if cr.SameObject(sr) {
				agrees = true
				break
			}
			if conflict == nil {
				conflict = &sourceRels[i]
			}
		}
		if conflict != nil && !agrees {
			return &Contradiction{Claim: cr, Source: *conflict}
		}
	}
	return nil
}

// supported classifies a claim relationship against the source:
// 1 when stated, cooccurrenceCredit when subject and object merely
// co-occur, 0 otherwise.
func (a *analysis) supported(r patterns.Relationship) float64 {
	for _, sr := range a.sourceRels {
		if r.SameSubject(sr) && r.SameObject(sr) {
			return 1
		}
	}
	if a.mentions(r.Subject) && (r.Kind == patterns.RelAsync || a.mentions(r.Object)) {
		return cooccurrenceCredit
	}
	return 0
}

func (a *analysis) mentions(term string) bool {
	term = strings.ToLower(strings.Trim(term, "`*&[]. "))
	if term == "" {
		return false
	}
	if a.textTokens[term] {
		return true
	}
	return strings.Contains(strings.ToLower(a.text), term)
}

func (a *analysis) run(m Method, exactWeight float64) Attempt {
	var at Attempt
	switch m {
	case MethodExactMatch:
		at = a.exactMatch()
	case MethodEntailment:
		at = a.entailment()
	default:
		at = a.semanticSimilarity(exactWeight)
	}
	at.Method = m
	if a.contradiction != nil && at.Score > contradictionCap {
		at.Score = contradictionCap
		at.Evidence = append(at.Evidence, "score capped by contradiction: "+a.contradiction.String())
	}
	return at
}

func (a *analysis) exactMatch() Attempt {
	claim := patterns.Normalize(a.claim)
	text := strings.Join(strings.Fields(strings.ToLower(a.text)), " ")
	if claim != "" && strings.Contains(text, claim) {
		return Attempt{Score: 1, Evidence: []string{"claim appears verbatim in source"}}
	}
	if len(a.claimTerms) == 0 {
		return Attempt{Score: 0, Evidence: []string{"claim has no significant words"}}
	}
	var found []string
	for _, t := range a.claimTerms {
		if a.textTokens[t] {
			found = append(found, t)
		}
	}
	ratio := float64(len(found)) / float64(len(a.claimTerms))
	return Attempt{
		Score: ratio * wordOverlapWeight,
		Evidence: []string{fmt.Sprintf("%d/%d significant words found: %s",
			len(found), len(a.claimTerms), strings.Join(found, ", "))},
	}
}

func (a *analysis) entailment() Attempt {
	if len(a.claimRels) == 0 {
		ids := patterns.Identifiers(a.claim)
		if len(ids) == 0 {
			return Attempt{Score: 0, Evidence: []string{"claim states no relationship or identifier"}}
		}
		var found []string
		for _, id := range ids {
			if a.mentions(id) {
				found = append(found, id)
			}
		}
		ratio := float64(len(found)) / float64(len(ids))
		return Attempt{
			Score: ratio * identifierWeight,
			Evidence: []string{fmt.Sprintf("%d/%d identifiers present: %s",
				len(found), len(ids), strings.Join(found, ", "))},
		}
	}

	var sum float64
	evidence := make([]string, 0, len(a.claimRels))
	for _, r := range a.claimRels {
		credit := a.supported(r)
		sum += credit
		switch credit {
		case 1:
			evidence = append(evidence, "relationship stated: "+r.String())
		case 0:
			evidence = append(evidence, "relationship missing: "+r.String())
		default:
			evidence = append(evidence, "subject and object co-occur only: "+r.String())
		}
	}
	return Attempt{Score: sum / float64(len(a.claimRels)), Evidence: evidence}
}

func (a *analysis) semanticSimilarity(exactWeight float64) Attempt {
	if len(a.claimTerms) == 0 {
		return Attempt{Score: 0, Evidence: []string{"claim has no key terms"}}
	}

	textSet := make(map[string]bool, len(a.textTerms))
	canonical := make(map[string]bool, len(a.textTerms))
	for _, t := range a.textTerms {
		textSet[t] = true
		canonical[patterns.CanonicalTerm(t)] = true
	}

	exact, fuzzy := 0, 0
	var missing []string
	for _, t := range a.claimTerms {
		switch {
		case textSet[t]:
			exact++
			fuzzy++
		case canonical[patterns.CanonicalTerm(t)] || a.stemHit(t):
			fuzzy++
		default:
			missing = append(missing, t)
		}
	}
	n := float64(len(a.claimTerms))
	score := exactWeight*float64(exact)/n + (1-exactWeight)*float64(fuzzy)/n

	evidence := []string{fmt.Sprintf("term overlap: %d exact, %d fuzzy of %d", exact, fuzzy, len(a.claimTerms))}
	if len(missing) > 0 {
		evidence = append(evidence, "missing terms: "+strings.Join(missing, ", "))
	}

	var bonus float64
	for _, r := range a.claimRels {
		if a.supported(r) == 1 {
			bonus += relationshipBonus
			evidence = append(evidence, "relationship stated: "+r.String())
		}
	}
	if bonus > maxRelationshipBonus {
		bonus = maxRelationshipBonus
	}
	score += bonus
	if score > 1 {
		score = 1
	}
	return Attempt{Score: score, Evidence: evidence}
}

// stemHit reports whether some source term shares a stemPrefix-long
// prefix with t.
func (a *analysis) stemHit(t string) bool {
	if len(t) < stemPrefix {
		return false
	}
	for _, s := range a.textTerms {
		if len(s) >= stemPrefix && s[:stemPrefix] == t[:stemPrefix] {
			return true
		}
	}
	return false
}
