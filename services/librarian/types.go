// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package librarian

import (
	"github.com/AleutianAI/librarian/services/librarian/grounding"
	"github.com/AleutianAI/librarian/services/librarian/grounding/astverify"
	"github.com/AleutianAI/librarian/services/librarian/grounding/citation"
	"github.com/AleutianAI/librarian/services/librarian/grounding/consistency"
)

// Symbol kinds accepted by VerifySymbolRequest.
const (
	SymbolFunction = "function"
	SymbolClass    = "class"
)

// VerifyLinesRequest is the body of POST /v1/librarian/verify/lines.
type VerifyLinesRequest struct {
	// Claim is the statement the references support.
	Claim string `json:"claim"`

	// References are the file and line pointers to check.
	References []astverify.LineReference `json:"references" binding:"required,min=1,dive"`
}

// VerifySymbolRequest is the body of POST /v1/librarian/verify/symbol.
type VerifySymbolRequest struct {
	Claim    string `json:"claim"`
	Name     string `json:"name" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`

	// Kind is "function" or "class".
	Kind string `json:"kind" binding:"required,oneof=function class"`
}

// VerifyAnswerRequest is the body of POST /v1/librarian/verify/answer-citations.
type VerifyAnswerRequest struct {
	// Answer is prose containing "file.go:42" style citations.
	Answer string `json:"answer" binding:"required"`
}

// VerifyCitationsRequest is the body of POST /v1/librarian/verify/citations.
type VerifyCitationsRequest struct {
	// SourceDocument is the full text every citation points into.
	SourceDocument string `json:"source_document" binding:"required"`

	Citations []citation.Citation `json:"citations" binding:"required,min=1"`
}

// VerifyCitationsResponse holds per-citation verdicts in request order.
type VerifyCitationsResponse struct {
	Results  []citation.VerificationResult `json:"results"`
	Grounded int                           `json:"grounded"`
	Total    int                           `json:"total"`
}

// CoVeRequest is the body of POST /v1/librarian/verify/cove.
type CoVeRequest struct {
	Query            string   `json:"query" binding:"required"`
	Context          []string `json:"context"`
	BaselineResponse string   `json:"baseline_response,omitempty"`
}

// VariantsRequest is the body of POST /v1/librarian/consistency/variants.
type VariantsRequest struct {
	Query string `json:"query" binding:"required"`
	Topic string `json:"topic"`
}

// CheckRequest is the body of POST /v1/librarian/consistency/check.
type CheckRequest struct {
	// Answers are answers to variants of one question. Facts are
	// extracted from Text when omitted.
	Answers []consistency.Answer `json:"answers" binding:"required"`
}

// CheckResponse reports whether the answers agree.
type CheckResponse struct {
	Consistent bool                   `json:"consistent"`
	Violation  *consistency.Violation `json:"violation,omitempty"`
}

// RunRequest is the body of POST /v1/librarian/consistency/run.
type RunRequest struct {
	Sets []consistency.QuerySet `json:"sets" binding:"required,min=1,dive"`
}

// RunResponse wraps the report with its rendered summary.
type RunResponse struct {
	Report  *consistency.Report `json:"report"`
	Summary string              `json:"summary"`
}

// StatsResponse holds running statistics per component.
type StatsResponse struct {
	Components map[string]grounding.Stats `json:"components"`
}

// HealthResponse is returned by GET /v1/librarian/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Audit    bool   `json:"audit"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	// Error is a human-readable message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`

	// Details carries the underlying error, when safe to expose.
	Details string `json:"details,omitempty"`
}
