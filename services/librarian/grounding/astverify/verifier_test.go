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
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/symbols"
)

const demoGo = `package demo

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	fmt.Println("hello", name)
}

type Greeter struct {
	Prefix string
}

func (g *Greeter) Say(name string) string {
	return g.Prefix + name
}
`

func memReader(files map[string]string) FileReader {
	return FileReaderFunc(func(ctx context.Context, path string) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
		}
		return []byte(content), nil
	})
}

func newTestVerifier(t *testing.T, cfg *Config, opts ...Option) *Verifier {
	t.Helper()
	v, err := New(memReader(map[string]string{"demo.go": demoGo}), cfg, opts...)
	require.NoError(t, err)
	return v
}

func TestNew_NilReader(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, errors.Is(err, ErrNilReader))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.LineTolerance)
	assert.True(t, cfg.EnableFuzzyMatching)
	assert.Equal(t, 0.5, cfg.VerifiedThreshold)
}

func TestVerifyLineReferences(t *testing.T) {
	tests := []struct {
		name        string
		refs        []LineReference
		verified    bool
		minAccuracy float64
		maxAccuracy float64
		issue       IssueType
	}{
		{
			name:        "exact line and content",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: 6, Content: "func Greet"}},
			verified:    true,
			minAccuracy: 0.95, maxAccuracy: 1,
		},
		{
			name:        "line exists without content",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: 3}},
			verified:    true,
			minAccuracy: 1, maxAccuracy: 1,
		},
		{
			name:        "off by one within tolerance",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: 7, Content: "func Greet"}},
			verified:    true,
			minAccuracy: 0.5, maxAccuracy: 0.9,
			issue:       IssueContentChanged,
		},
		{
			name:        "beyond file length",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: 99999, Content: "func Greet"}},
			verified:    false,
			minAccuracy: 0, maxAccuracy: 0,
			issue:       IssueLineMismatch,
		},
		{
			name:        "zero line",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: 0}},
			verified:    false,
			minAccuracy: 0, maxAccuracy: 0,
			issue:       IssueLineMismatch,
		},
		{
			name:        "negative line",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: -3}},
			verified:    false,
			minAccuracy: 0, maxAccuracy: 0,
			issue:       IssueLineMismatch,
		},
		{
			name:        "content beyond tolerance",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: 16, Content: "package demo"}},
			verified:    false,
			minAccuracy: 0, maxAccuracy: 0,
			issue:       IssueLineMismatch,
		},
		{
			name:        "content changed gets fuzzy credit",
			refs:        []LineReference{{FilePath: "demo.go", LineNumber: 6, Content: "func Farewell(name string)"}},
			verified:    false,
			minAccuracy: 0.29, maxAccuracy: 0.31,
			issue:       IssueContentChanged,
		},
		{
			name:        "missing file",
			refs:        []LineReference{{FilePath: "nope.go", LineNumber: 1}},
			verified:    false,
			minAccuracy: 0, maxAccuracy: 0,
			issue:       IssueFileMissing,
		},
		{
			name: "mean of references",
			refs: []LineReference{
				{FilePath: "demo.go", LineNumber: 6, Content: "func Greet"},
				{FilePath: "demo.go", LineNumber: 99999},
			},
			verified:    true,
			minAccuracy: 0.5, maxAccuracy: 0.5,
			issue:       IssueLineMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t, nil)
			res, err := v.VerifyLineReferences(context.Background(), "Greet is on line 6", tt.refs)
			require.NoError(t, err)

			assert.Equal(t, tt.verified, res.Verified)
			assert.GreaterOrEqual(t, res.Accuracy, tt.minAccuracy)
			assert.LessOrEqual(t, res.Accuracy, tt.maxAccuracy)
			assert.Len(t, res.References, len(tt.refs))
			if tt.issue != "" {
				require.NotEmpty(t, res.Issues)
				assert.Equal(t, tt.issue, res.Issues[0].Type)
			} else {
				assert.Empty(t, res.Issues)
			}
			if res.Verified {
				assert.Greater(t, res.Accuracy, 0.0)
			}
			assert.Equal(t, confidence.KindDerived, res.Confidence.Kind)
		})
	}
}

func TestVerifyLineReferences_FuzzyDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableFuzzyMatching = false
	v := newTestVerifier(t, cfg)

	res, err := v.VerifyLineReferences(context.Background(), "claim", []LineReference{
		{FilePath: "demo.go", LineNumber: 6, Content: "func Farewell(name string)"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Accuracy)
	assert.False(t, res.Verified)
}

func TestVerifyLineReferences_EmptyInput(t *testing.T) {
	v := newTestVerifier(t, nil)

	res, err := v.VerifyLineReferences(context.Background(), "claim", nil)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 0.0, res.Accuracy)
	assert.Equal(t, confidence.KindAbsent, res.Confidence.Kind)
	assert.Equal(t, confidence.ReasonEmptyInput, res.Confidence.Reason)

	res, err = v.VerifyLineReferences(context.Background(), "   ", []LineReference{{FilePath: "demo.go", LineNumber: 6}})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 0.0, res.Accuracy)

	assert.Equal(t, 2, v.Stats().Total)
	assert.Equal(t, 0, v.Stats().Verified)
}

func TestVerifyLineReferences_Idempotent(t *testing.T) {
	v := newTestVerifier(t, nil)
	refs := []LineReference{{FilePath: "demo.go", LineNumber: 7, Content: "func Greet"}}

	first, err := v.VerifyLineReferences(context.Background(), "claim", refs)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Stats().Total)

	second, err := v.VerifyLineReferences(context.Background(), "claim", refs)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Stats().Total)

	assert.Equal(t, first.Verified, second.Verified)
	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Equal(t, 1.0, v.Stats().Accuracy)
}

func TestVerifyLineReferences_Canceled(t *testing.T) {
	v := newTestVerifier(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.VerifyLineReferences(ctx, "claim", []LineReference{{FilePath: "demo.go", LineNumber: 1}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, v.Stats().Total)
}

func TestVerifyFunctionClaim(t *testing.T) {
	providers := map[string][]Option{
		"tree-sitter": {WithSymbolProvider(symbols.NewParser())},
		"scanner":     nil,
	}
	for name, opts := range providers {
		t.Run(name, func(t *testing.T) {
			v := newTestVerifier(t, nil, opts...)
			ctx := context.Background()

			res, err := v.VerifyFunctionClaim(ctx, "Greet prints a greeting", "Greet", "demo.go")
			require.NoError(t, err)
			assert.True(t, res.Verified)
			assert.GreaterOrEqual(t, res.Accuracy, 0.95)
			require.Len(t, res.References, 1)
			assert.Equal(t, 6, res.References[0].Reference.LineNumber)

			res, err = v.VerifyFunctionClaim(ctx, "Say is a method", "Greeter.Say", "demo.go")
			require.NoError(t, err)
			assert.True(t, res.Verified)
			assert.Equal(t, 14, res.References[0].Reference.LineNumber)

			res, err = v.VerifyFunctionClaim(ctx, "Farewell exists", "Farewell", "demo.go")
			require.NoError(t, err)
			assert.False(t, res.Verified)
			assert.Equal(t, 0.0, res.Accuracy)

			res, err = v.VerifyFunctionClaim(ctx, "Greeter is a function", "Greeter", "demo.go")
			require.NoError(t, err)
			assert.False(t, res.Verified, "a struct is not a function")
		})
	}
}

func TestVerifyClassClaim(t *testing.T) {
	v := newTestVerifier(t, nil, WithSymbolProvider(symbols.NewParser()))
	ctx := context.Background()

	res, err := v.VerifyClassClaim(ctx, "Greeter holds a prefix", "Greeter", "demo.go")
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 10, res.References[0].Reference.LineNumber)

	res, err = v.VerifyClassClaim(ctx, "Greet is a class", "Greet", "demo.go")
	require.NoError(t, err)
	assert.False(t, res.Verified)

	res, err = v.VerifyClassClaim(ctx, "Missing file", "Greeter", "other.go")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, IssueFileMissing, res.Issues[0].Type)

	res, err = v.VerifyClassClaim(ctx, "", "Greeter", "demo.go")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, confidence.KindAbsent, res.Confidence.Kind)

	assert.Equal(t, 4, v.Stats().Total)
	assert.Equal(t, 1, v.Stats().Verified)
}

func TestExtractLineReferences(t *testing.T) {
	text := "See [demo.go:6] and (pkg/util.py:10-12). Also demo.go:14, " +
		"then line 3 of main.ts. Duplicate [demo.go:6]."
	refs := ExtractLineReferences(text)

	want := []LineReference{
		{FilePath: "demo.go", LineNumber: 6},
		{FilePath: "pkg/util.py", LineNumber: 10},
		{FilePath: "demo.go", LineNumber: 14},
		{FilePath: "main.ts", LineNumber: 3},
	}
	assert.Equal(t, want, refs)
}

func TestVerifyAnswerCitations(t *testing.T) {
	v := newTestVerifier(t, nil)

	res, err := v.VerifyAnswerCitations(context.Background(), "Greet is declared at [demo.go:6] and Say at [demo.go:14].")
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Len(t, res.References, 2)

	res, err = v.VerifyAnswerCitations(context.Background(), "No citations here.")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 0.0, res.Accuracy)
}
