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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

const twoValues = "The function returns two values."

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxVerificationQuestions)
	assert.Equal(t, 0.5, cfg.MinConfidenceThreshold)
	assert.True(t, cfg.AddHedgingForLowConfidence)
	assert.Equal(t, 0.6, cfg.HedgingThreshold)
}

func TestVerify_RevisesContradictedNumber(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Query:            "How many values does the function return?",
		Context:          []string{"The function returns three values."},
		BaselineResponse: twoValues,
	})
	require.NoError(t, err)

	require.Len(t, res.Answers, 1)
	assert.GreaterOrEqual(t, res.Answers[0].Confidence, 0.7)
	assert.False(t, res.Answers[0].ConsistentWithBaseline)
	assert.Contains(t, res.FinalResponse, "3")
	assert.NotContains(t, res.FinalResponse, "two values")
	assert.Equal(t, "The function returns 3 values.", res.FinalResponse)
	require.Len(t, res.Inconsistencies, 1)
	assert.Equal(t, ResolutionRevised, res.Inconsistencies[0].Resolution)
	assert.Equal(t, 1, res.Revised)
}

func TestVerify_HedgesMediumConfidence(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Query:            "How many values does the function return?",
		Context:          []string{"The helper produces three values."},
		BaselineResponse: twoValues,
	})
	require.NoError(t, err)

	require.Len(t, res.Answers, 1)
	conf := res.Answers[0].Confidence
	assert.GreaterOrEqual(t, conf, 0.4)
	assert.Less(t, conf, 0.7)
	assert.Contains(t, res.FinalResponse, "two")
	assert.True(t, patterns.ContainsHedge(res.FinalResponse))
	assert.Equal(t, "The function likely returns two values.", res.FinalResponse)
	require.Len(t, res.Inconsistencies, 1)
	assert.Equal(t, ResolutionKeptOriginal, res.Inconsistencies[0].Resolution)
	assert.Equal(t, 1, res.Hedged)
}

func TestVerify_HedgingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddHedgingForLowConfidence = false
	e := New(cfg)
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"The helper produces three values."},
		BaselineResponse: twoValues,
	})
	require.NoError(t, err)
	assert.Equal(t, twoValues, res.FinalResponse)
	assert.Equal(t, 0, res.Hedged)
}

func TestVerify_DoesNotDuplicateHedge(t *testing.T) {
	e := New(nil)
	baseline := "The function probably returns two values."
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"The helper produces three values."},
		BaselineResponse: baseline,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.FinalResponse, baseline))
	assert.NotContains(t, res.FinalResponse, "likely")
	assert.Equal(t, 0, res.Hedged)
}

func TestVerify_ConsistentAnswerIsVerified(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Query: "How many values does the function return?",
		Context: []string{
			"The function returns two values.",
			"It is exported.",
			"Callers check the error.",
			"Values are cached.",
			"Docs live in the README.",
		},
		BaselineResponse: twoValues,
	})
	require.NoError(t, err)

	assert.True(t, res.Answers[0].ConsistentWithBaseline)
	assert.Empty(t, res.Inconsistencies)
	assert.Equal(t, twoValues, res.FinalResponse)
	assert.True(t, res.Verified)
	assert.Equal(t, confidence.KindDerived, res.Confidence.Kind)
	assert.Len(t, res.Confidence.Inputs, 3)
	assert.InDelta(t, 0.6*0.95+0.4, res.Confidence.Score, 1e-9)
}

func TestVerify_SparseContextScalesConfidence(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"The function returns two values."},
		BaselineResponse: twoValues,
	})
	require.NoError(t, err)

	assert.InDelta(t, (0.6*0.95+0.4)/5, res.Confidence.Score, 1e-9)
	assert.False(t, res.Verified)
	assert.True(t, strings.HasSuffix(res.FinalResponse, unverifiedNote))
}

func TestVerify_NoContext(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{BaselineResponse: twoValues})
	require.NoError(t, err)

	assert.False(t, res.Verified)
	assert.True(t, res.Confidence.IsAbsent())
	assert.Equal(t, confidence.ReasonNoContext, res.Confidence.Reason)
	require.Len(t, res.Answers, 1)
	assert.Equal(t, 0.1, res.Answers[0].Confidence)
	assert.Contains(t, res.Answers[0].Answer, "unable to verify")
	require.Len(t, res.Inconsistencies, 1)
	assert.Equal(t, ResolutionRemoved, res.Inconsistencies[0].Resolution)
	assert.Contains(t, res.FinalResponse, "two values")
	assert.Contains(t, res.FinalResponse, unverifiedNote)
}

func TestVerify_NoClaims(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"something unrelated"},
		BaselineResponse: "Hello there.",
	})
	require.NoError(t, err)

	assert.Empty(t, res.Questions)
	assert.Equal(t, confidence.ReasonNoClaims, res.Confidence.Reason)
	assert.Equal(t, "Hello there.", res.FinalResponse)
	assert.False(t, res.Verified)
}

func TestVerify_NoSupportingContext(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"Logging uses slog."},
		BaselineResponse: "Store has a method Open.",
	})
	require.NoError(t, err)

	require.Len(t, res.Answers, 1)
	assert.Equal(t, 0.2, res.Answers[0].Confidence)
	assert.False(t, res.Answers[0].ConsistentWithBaseline)
}

func TestVerify_BooleanConfirmed(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"// Store has a method Open that opens the file."},
		BaselineResponse: "Store has a method Open.",
	})
	require.NoError(t, err)

	require.Len(t, res.Answers, 1)
	assert.Equal(t, answerConfirmed, res.Answers[0].Answer)
	assert.True(t, res.Answers[0].ConsistentWithBaseline)
	assert.InDelta(t, 0.95, res.Answers[0].Confidence, 1e-9)
}

func TestVerify_FactualRevisionAppendsNote(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"The Open function returns a Handle."},
		BaselineResponse: "The Open function returns a Reader.",
	})
	require.NoError(t, err)

	require.Len(t, res.Questions, 1)
	assert.Equal(t, patterns.ClaimReturns, res.Questions[0].Kind)
	assert.InDelta(t, 0.75, res.Answers[0].Confidence, 1e-9)
	assert.Contains(t, res.FinalResponse, "[Verified: The Open function returns a Handle]")
	assert.Equal(t, ResolutionRevised, res.Inconsistencies[0].Resolution)
}

func TestVerify_SynthesizesBaseline(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{
		Query:   "Where is the parser configured?",
		Context: []string{"The parser reads config.yaml.\nUnrelated line here.", "Logging uses slog."},
	})
	require.NoError(t, err)
	assert.Equal(t, "The parser reads config.yaml.", res.BaselineResponse)
}

func TestVerify_Stages(t *testing.T) {
	e := New(nil)
	res, err := e.Verify(context.Background(), Input{Context: []string{"x"}, BaselineResponse: twoValues})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageBaseline, StagePlan, StageAnswer, StageSynthesize, StageDone}, res.Stages)
}

func TestVerify_Canceled(t *testing.T) {
	e := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Verify(ctx, Input{Context: []string{"x"}, BaselineResponse: twoValues})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, e.Stats().Total)
}

func TestVerify_Stats(t *testing.T) {
	e := New(nil)
	assert.Equal(t, 0.0, e.Stats().Accuracy)

	for i := 0; i < 2; i++ {
		_, err := e.Verify(context.Background(), Input{BaselineResponse: twoValues})
		require.NoError(t, err)
	}
	stats := e.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0, stats.Verified)
	assert.Equal(t, 0.0, stats.Accuracy)

	e.ResetStats()
	assert.Equal(t, 0, e.Stats().Total)
}

func TestPlan_DedupAndCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxVerificationQuestions = 2
	e := New(cfg)
	qs := e.plan("Store has a method Open. Store has a method Open. Store has a method Close. Store extends Base.")

	require.Len(t, qs, 2)
	assert.Equal(t, "q1", qs[0].ID)
	assert.Equal(t, "Does Store have a method named Open?", qs[0].Question)
	assert.Equal(t, patterns.ShapeBoolean, qs[0].ExpectedShape)
	assert.Equal(t, "q2", qs[1].ID)
	assert.Equal(t, "Store has a method Close", qs[1].TargetClaim)
}

func TestSynthesizeBaseline_Fallback(t *testing.T) {
	lines := []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7"}
	assert.Equal(t, "l1\nl2\nl3\nl4\nl5", synthesizeBaseline("xyzzy", lines))
	assert.Equal(t, "", synthesizeBaseline("anything", nil))
}

func TestStageMachine_ForwardOnly(t *testing.T) {
	m := newStageMachine()
	require.NoError(t, m.advance(StagePlan))
	assert.ErrorIs(t, m.advance(StageBaseline), ErrBackwardTransition)
	assert.ErrorIs(t, m.advance(StagePlan), ErrBackwardTransition)
	require.NoError(t, m.advance(StageSynthesize))
	assert.Equal(t, []Stage{StageBaseline, StagePlan, StageSynthesize}, m.visited)
}

func TestHedgeClaim(t *testing.T) {
	tests := []struct {
		sentence string
		hedge    string
		want     string
	}{
		{"The function returns two values", "may", "The function may return two values"},
		{"The function returns two values", "appears to", "The function appears to return two values"},
		{"The function returns two values", "likely", "The function likely returns two values"},
		{"Store is a struct", "likely", "Store is likely a struct"},
		{"Store is a struct", "may", "Store may be a struct"},
		{"Open is defined in store.go", "might", "Open might be defined in store.go"},
		{"Open is defined in store.go", "likely", "Open is likely defined in store.go"},
		{"Store has a method Open", "appears to", "Store appears to have a method Open"},
	}
	for _, tt := range tests {
		t.Run(tt.sentence+"/"+tt.hedge, func(t *testing.T) {
			c, _, ok := patterns.MatchClaim(tt.sentence)
			require.True(t, ok)
			got, ok := hedgeClaim(c, tt.hedge)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHedgeFor(t *testing.T) {
	assert.Equal(t, "likely", hedgeFor(0.65))
	assert.Equal(t, "appears to", hedgeFor(0.55))
	assert.Equal(t, "may", hedgeFor(0.47))
	assert.Equal(t, "might", hedgeFor(0.41))
}

func TestAnswerConfidenceInRange(t *testing.T) {
	e := New(nil)
	baseline := "Store has 12 fields. Store extends Base. Open returns error. " +
		"Load takes a parameter path. Store is a struct. Open is defined in store.go."
	res, err := e.Verify(context.Background(), Input{
		Context:          []string{"type Store struct { Base }", "func Open(path string) error", "Store has 3 fields"},
		BaselineResponse: baseline,
	})
	require.NoError(t, err)
	for _, a := range res.Answers {
		assert.GreaterOrEqual(t, a.Confidence, 0.0)
		assert.LessOrEqual(t, a.Confidence, 1.0)
	}
	s := res.Confidence.Scalar()
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
}
