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
	"errors"
	"fmt"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
)

// Stage is a step of the verification state machine.
type Stage string

const (
	StageBaseline   Stage = "baseline"
	StagePlan       Stage = "plan"
	StageAnswer     Stage = "answer"
	StageSynthesize Stage = "synthesize"
	StageDone       Stage = "done"
)

var stageOrder = map[Stage]int{
	StageBaseline:   0,
	StagePlan:       1,
	StageAnswer:     2,
	StageSynthesize: 3,
	StageDone:       4,
}

// ErrBackwardTransition is returned when a stage transition does not move
// strictly forward.
var ErrBackwardTransition = errors.New("cove: stage transitions must move forward")

// stageMachine tracks the current stage and every stage visited.
type stageMachine struct {
	current Stage
	visited []Stage
}

func newStageMachine() *stageMachine {
	return &stageMachine{current: StageBaseline, visited: []Stage{StageBaseline}}
}

func (m *stageMachine) advance(next Stage) error {
	to, ok := stageOrder[next]
	if !ok || to <= stageOrder[m.current] {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, m.current, next)
	}
	m.current = next
	m.visited = append(m.visited, next)
	return nil
}

// Resolution records what synthesis did with an inconsistent claim.
type Resolution string

const (
	ResolutionRevised      Resolution = "revised"
	ResolutionKeptOriginal Resolution = "kept_original"
	ResolutionRemoved      Resolution = "removed"
)

// Input is one verification request.
type Input struct {
	// Query is the user question the response answers.
	Query string `json:"query"`

	// Context holds the retrieved context items, in retrieval order.
	Context []string `json:"context"`

	// BaselineResponse is the draft answer. When empty, a baseline is
	// synthesized from Context.
	BaselineResponse string `json:"baseline_response,omitempty"`
}

// VerificationQuestion is a check derived from one claim in the baseline.
type VerificationQuestion struct {
	ID            string               `json:"id"`
	Question      string               `json:"question"`
	TargetClaim   string               `json:"target_claim"`
	Kind          patterns.ClaimKind   `json:"kind"`
	ExpectedShape patterns.AnswerShape `json:"expected_shape"`

	claim    patterns.Claim
	sentence string
}

// VerificationAnswer is the context-derived answer to one question.
type VerificationAnswer struct {
	QuestionID             string   `json:"question_id"`
	Answer                 string   `json:"answer"`
	Confidence             float64  `json:"confidence"`
	Citation               string   `json:"citation,omitempty"`
	ConsistentWithBaseline bool     `json:"consistent_with_baseline"`
	Evidence               []string `json:"evidence,omitempty"`

	number int
}

// Inconsistency links a question to the baseline claim it disputes and
// what synthesis did about it.
type Inconsistency struct {
	QuestionID    string     `json:"question_id"`
	OriginalClaim string     `json:"original_claim"`
	VerifiedClaim string     `json:"verified_claim"`
	Resolution    Resolution `json:"resolution"`
	Confidence    float64    `json:"confidence"`
}

// Result is the outcome of one chain-of-verification run.
type Result struct {
	Query            string                 `json:"query"`
	BaselineResponse string                 `json:"baseline_response"`
	FinalResponse    string                 `json:"final_response"`
	Questions        []VerificationQuestion `json:"questions"`
	Answers          []VerificationAnswer   `json:"answers"`
	Inconsistencies  []Inconsistency        `json:"inconsistencies"`
	Stages           []Stage                `json:"stages"`
	Revised          int                    `json:"revised"`
	Hedged           int                    `json:"hedged"`
	Verified         bool                   `json:"verified"`
	Confidence       confidence.Value       `json:"confidence"`
}

// Config configures the engine.
type Config struct {
	// MaxVerificationQuestions caps the questions planned per response.
	MaxVerificationQuestions int

	// MinConfidenceThreshold is the overall confidence needed for
	// Result.Verified.
	MinConfidenceThreshold float64

	// AddHedgingForLowConfidence inserts hedges into claims whose answers
	// have medium confidence.
	AddHedgingForLowConfidence bool

	// HedgingThreshold is the overall confidence below which an
	// unverified note is appended when nothing else was changed.
	HedgingThreshold float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxVerificationQuestions:   10,
		MinConfidenceThreshold:     0.5,
		AddHedgingForLowConfidence: true,
		HedgingThreshold:           0.6,
	}
}
