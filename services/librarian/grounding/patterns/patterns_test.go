// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchClaim_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		kind     ClaimKind
		shape    AnswerShape
		subject  string
		object   string
		number   int
	}{
		{"numeric beats returns", "The function returns two values", ClaimNumeric, ShapeNumeric, "function", "", 2},
		{"numeric digits", "Parse takes 3 parameters", ClaimNumeric, ShapeNumeric, "Parse", "", 3},
		{"has method", "Server has a method Start", ClaimMethod, ShapeBoolean, "Server", "Start", -1},
		{"parameter", "Open accepts a parameter `path`", ClaimParameter, ShapeBoolean, "Open", "path", -1},
		{"extends", "ClassX extends Base", ClaimInheritance, ShapeBoolean, "ClassX", "Base", -1},
		{"returns", "Lookup returns a string", ClaimReturns, ShapeFactual, "Lookup", "string", -1},
		{"location", "Handler is defined in handlers.go.", ClaimLocation, ShapeFactual, "Handler", "handlers.go", -1},
		{"property", "Config has a field Timeout", ClaimProperty, ShapeBoolean, "Config", "Timeout", -1},
		{"is a", "Store is an interface", ClaimIsA, ShapeBoolean, "Store", "interface", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rule, ok := MatchClaim(tt.sentence)
			require.True(t, ok)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.kind, rule.Kind)
			assert.Equal(t, tt.shape, c.Shape)
			assert.Equal(t, tt.subject, c.Subject)
			assert.Equal(t, tt.object, c.Object)
			assert.Equal(t, tt.number, c.Number)
			assert.NotEmpty(t, rule.QuestionFor(c))
		})
	}
}

func TestMatchClaim_NoMatch(t *testing.T) {
	_, _, ok := MatchClaim("Hello there")
	assert.False(t, ok)
}

func TestNumericQuestion(t *testing.T) {
	c, rule, ok := MatchClaim("The function returns two values")
	require.True(t, ok)
	assert.Equal(t, "How many values does function return?", rule.QuestionFor(c))
}

func TestExtractRelationships(t *testing.T) {
	t.Run("prose and code extends", func(t *testing.T) {
		claim := ExtractRelationships("ClassX extends Base")
		require.Len(t, claim, 1)
		assert.Equal(t, RelExtends, claim[0].Kind)
		assert.Equal(t, "ClassX", claim[0].Subject)
		assert.Equal(t, "Base", claim[0].Object)

		src := ExtractRelationships("export class ClassX extends Other {}")
		require.NotEmpty(t, src)
		assert.Equal(t, "Other", src[0].Object)
		assert.True(t, claim[0].SameSubject(src[0]))
		assert.False(t, claim[0].SameObject(src[0]))
	})

	t.Run("go function returns and parameters", func(t *testing.T) {
		rels := ExtractRelationships("func Open(path string, opts Options) *Store {")
		var returns, params []string
		for _, r := range rels {
			switch r.Kind {
			case RelReturns:
				returns = append(returns, r.Object)
			case RelParameter:
				params = append(params, r.Object)
			}
		}
		assert.Equal(t, []string{"*Store"}, returns)
		assert.Equal(t, []string{"path", "opts"}, params)
	})

	t.Run("go method receiver", func(t *testing.T) {
		rels := ExtractRelationships("func (s *Server) Start(ctx context.Context) error {")
		assert.Contains(t, rels, Relationship{Kind: RelHasMethod, Subject: "Server", Object: "Start", Rule: "go_method_receiver"})
	})

	t.Run("async", func(t *testing.T) {
		rels := ExtractRelationships("async function fetchUser(id) {}")
		require.NotEmpty(t, rels)
		found := false
		for _, r := range rels {
			if r.Kind == RelAsync {
				found = true
				assert.Equal(t, "fetchUser", r.Subject)
			}
		}
		assert.True(t, found)
	})

	t.Run("stopword subjects dropped", func(t *testing.T) {
		assert.Empty(t, ExtractRelationships("The extends keyword"))
	})
}

func TestSingleValued(t *testing.T) {
	assert.True(t, RelExtends.SingleValued())
	assert.True(t, RelReturns.SingleValued())
	assert.False(t, RelImplements.SingleValued())
	assert.False(t, RelParameter.SingleValued())
}

func TestNumbers(t *testing.T) {
	v, ok := ParseCount("Three")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = ParseCount("12")
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	_, ok = ParseCount("several")
	assert.False(t, ok)

	assert.Equal(t, "takes 3 args and 10 flags", CanonicalizeNumbers("takes three args and ten flags"))
	assert.Equal(t, "two", NumberWord(2))
	assert.Equal(t, "42", NumberWord(42))
	assert.Equal(t, []int{2, 4}, FindCounts("two inputs, 4 outputs"))
}

func TestKeyTermsAndOverlap(t *testing.T) {
	terms := KeyTerms("The parser returns three tokens from the parser")
	assert.Equal(t, []string{"parser", "returns", "tokens"}, terms)

	assert.Equal(t, 0.0, TermOverlap(nil, terms))
	assert.InDelta(t, 2.0/3.0, TermOverlap(terms, []string{"parser", "tokens"}), 1e-9)
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("It lives in config.go. It returns v1.2!\nDone")
	assert.Equal(t, []string{"It lives in config.go.", "It returns v1.2!", "Done"}, got)
}

func TestIdentifiers(t *testing.T) {
	ids := Identifiers("The `Open` function calls parseConfig and load_defaults on ClassX.")
	assert.Equal(t, []string{"Open", "parseConfig", "ClassX", "load_defaults"}, ids)
}

func TestNormalizeFact(t *testing.T) {
	assert.Equal(t, "accepts 2 parameter", NormalizeFact("Takes two arguments."))
	assert.Equal(t, NormalizeFact("It returns the string"), NormalizeFact("it return string"))
	assert.Equal(t, "list", CanonicalType("[]slice"))
	assert.Equal(t, "string", CanonicalType("`str`"))
}

func TestHedges(t *testing.T) {
	assert.True(t, ContainsHedge("It may return nil"))
	assert.True(t, ContainsHedge("This appears to work"))
	assert.False(t, ContainsHedge("It returns nil"))
	assert.False(t, ContainsHedge("Maybe later"))
	assert.True(t, ContainsNegative("Claim not confirmed by context"))
	assert.False(t, ContainsNegative("confirmed"))
}

func TestBaseVerb(t *testing.T) {
	assert.Equal(t, "return", BaseVerb("returns"))
	assert.Equal(t, "have", BaseVerb("has"))
	assert.Equal(t, "accept", BaseVerb("accepts"))
	assert.Equal(t, "pass", BaseVerb("passes"))
	assert.Equal(t, "copy", BaseVerb("copies"))
}
