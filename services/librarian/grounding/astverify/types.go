// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package astverify

import (
	"context"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/symbols"
)

// IssueType categorizes a failed reference.
type IssueType string

const (
	// IssueLineMismatch means the line is out of range, or the content
	// was found only beyond the tolerance window.
	IssueLineMismatch IssueType = "line_mismatch"

	// IssueFileMissing means the file could not be read.
	IssueFileMissing IssueType = "file_missing"

	// IssueContentChanged means the cited line no longer holds the
	// supplied content.
	IssueContentChanged IssueType = "content_changed"
)

// LineReference points at a line of a file, optionally with the text the
// line is claimed to contain.
type LineReference struct {
	FilePath   string `json:"file_path" binding:"required"`
	LineNumber int    `json:"line_number"`
	Content    string `json:"content,omitempty"`
}

// Issue describes one problem with one reference.
type Issue struct {
	Type       IssueType `json:"type"`
	FilePath   string    `json:"file_path"`
	LineNumber int       `json:"line_number"`
	Message    string    `json:"message"`
}

// ReferenceCheck is the outcome for a single reference.
type ReferenceCheck struct {
	Reference LineReference `json:"reference"`

	// Credit is this reference's contribution to accuracy, in [0,1].
	Credit float64 `json:"credit"`

	// MatchedLine is the line where the content was found, or 0.
	MatchedLine int `json:"matched_line,omitempty"`

	// Distance is |MatchedLine - LineNumber| when MatchedLine is set.
	Distance int `json:"distance,omitempty"`
}

// Result is the verdict for one claim.
type Result struct {
	Claim      string           `json:"claim"`
	References []ReferenceCheck `json:"references"`
	Verified   bool             `json:"verified"`
	Accuracy   float64          `json:"accuracy"`
	Issues     []Issue          `json:"issues"`
	Evidence   []string         `json:"evidence"`
	Confidence confidence.Value `json:"confidence"`
}

// FileReader supplies file contents.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// FileReaderFunc adapts a function to FileReader.
type FileReaderFunc func(ctx context.Context, path string) ([]byte, error)

// ReadFile calls f.
func (f FileReaderFunc) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// SymbolProvider supplies the declarations of a file.
type SymbolProvider interface {
	Symbols(ctx context.Context, path string, content []byte) ([]symbols.Symbol, error)
}

// Config configures the verifier.
type Config struct {
	// LineTolerance is the window, in lines, within which a displaced
	// match still earns partial credit.
	LineTolerance int

	// EnableFuzzyMatching grants partial credit to near matches of the
	// supplied content.
	EnableFuzzyMatching bool

	// VerifiedThreshold is the minimum accuracy for Verified.
	VerifiedThreshold float64
}

// DefaultConfig returns the default verifier configuration.
func DefaultConfig() *Config {
	return &Config{
		LineTolerance:       3,
		EnableFuzzyMatching: true,
		VerifiedThreshold:   0.5,
	}
}
