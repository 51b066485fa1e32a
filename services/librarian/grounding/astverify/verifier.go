// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package astverify checks that line numbers, functions and classes cited
// in a claim exist where the claim says they do.
package astverify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/librarian/services/librarian/grounding"
	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/patterns"
	"github.com/AleutianAI/librarian/services/librarian/symbols"
	"go.opentelemetry.io/otel/trace"
)

// ErrNilReader is returned by New when no FileReader is supplied.
var ErrNilReader = errors.New("astverify: file reader must not be nil")

// Option configures a Verifier.
type Option func(*Verifier)

// WithSymbolProvider sets the structural facts collaborator. Without
// one, declarations are found with symbols.ScanDeclarations.
func WithSymbolProvider(p SymbolProvider) Option {
	return func(v *Verifier) {
		v.symbols = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = l
	}
}

// Verifier is the AST claim verifier.
//
// Thread Safety: Safe for concurrent use. Running statistics are
// guarded by a mutex and scoped to this instance.
type Verifier struct {
	config  *Config
	reader  FileReader
	symbols SymbolProvider
	logger  *slog.Logger
	stats   grounding.Counter
}

// New creates a verifier.
//
// Inputs:
//
//	reader - Source of file contents. Required.
//	config - Configuration. If nil, defaults are used.
//	opts - Optional collaborators.
//
// Outputs:
//
//	*Verifier - The configured verifier.
//	error - ErrNilReader if reader is nil.
func New(reader FileReader, config *Config, opts ...Option) (*Verifier, error) {
	if reader == nil {
		return nil, ErrNilReader
	}
	if config == nil {
		config = DefaultConfig()
	}
	v := &Verifier{
		config: config,
		reader: reader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Name returns the verifier name for logging and metrics.
func (v *Verifier) Name() string {
	return grounding.ComponentASTVerifier
}

// Stats returns the running verification statistics.
func (v *Verifier) Stats() grounding.Stats {
	return v.stats.Snapshot()
}

// ResetStats zeroes the running statistics.
func (v *Verifier) ResetStats() {
	v.stats.Reset()
}

// VerifyLineReferences checks every reference and scores the claim.
//
// Per reference: a line outside the file scores 0 (line_mismatch); the
// cited line containing the content, or existing when no content is
// supplied, scores 1; content found d lines away within LineTolerance
// scores 1 - 0.5*d/tolerance; anything else records an issue and scores
// 0, or a fuzzy partial credit when enabled.
//
// Outputs:
//
//	*Result - The verdict. Never nil when error is nil.
//	error - Only the context error. Unreadable files become issues.
func (v *Verifier) VerifyLineReferences(ctx context.Context, claim string, refs []LineReference) (*Result, error) {
	start := time.Now()
	ctx, span := grounding.StartVerifySpan(ctx, grounding.ComponentASTVerifier, "VerifyLineReferences")
	defer span.End()

	result, err := v.verifyRefs(ctx, claim, refs, nil)
	if err != nil {
		grounding.SetSpanError(span, err)
		return nil, err
	}
	v.finish(ctx, span, result, start)
	return result, nil
}

// VerifyFunctionClaim checks that filePath declares a function or method
// called name. Methods may be named "Type.Method".
func (v *Verifier) VerifyFunctionClaim(ctx context.Context, claim, name, filePath string) (*Result, error) {
	return v.verifySymbol(ctx, "VerifyFunctionClaim", claim, name, filePath, symbols.Kind.IsCallable, "function")
}

// VerifyClassClaim checks that filePath declares a class, struct,
// interface or type called name.
func (v *Verifier) VerifyClassClaim(ctx context.Context, claim, name, filePath string) (*Result, error) {
	return v.verifySymbol(ctx, "VerifyClassClaim", claim, name, filePath, symbols.Kind.IsClassLike, "class")
}

// VerifyAnswerCitations extracts [file:line] style citations from an
// answer and verifies them as line references.
func (v *Verifier) VerifyAnswerCitations(ctx context.Context, answer string) (*Result, error) {
	return v.VerifyLineReferences(ctx, answer, ExtractLineReferences(answer))
}

func (v *Verifier) verifySymbol(ctx context.Context, op, claim, name, filePath string, accept func(symbols.Kind) bool, noun string) (*Result, error) {
	start := time.Now()
	ctx, span := grounding.StartVerifySpan(ctx, grounding.ComponentASTVerifier, op)
	defer span.End()

	result := newResult(claim)
	if strings.TrimSpace(claim) == "" || strings.TrimSpace(name) == "" {
		result.Evidence = append(result.Evidence, "empty claim or symbol name")
		result.Confidence = confidence.Absent(confidence.ReasonEmptyInput)
		v.finish(ctx, span, result, start)
		return result, nil
	}

	lines := make(map[string][]string)
	fileLines, issue, err := v.readLines(ctx, filePath, lines)
	if err != nil {
		grounding.SetSpanError(span, err)
		return nil, err
	}
	if issue != nil {
		result.Issues = append(result.Issues, *issue)
		result.Confidence = confidence.Deterministic(0)
		v.finish(ctx, span, result, start)
		return result, nil
	}

	syms, err := v.symbolsFor(ctx, filePath, []byte(strings.Join(fileLines, "\n")))
	if err != nil {
		grounding.SetSpanError(span, err)
		return nil, err
	}
	sym, ok := symbols.Find(syms, name, accept)
	if !ok {
		result.Evidence = append(result.Evidence, fmt.Sprintf("no %s named %s declared in %s", noun, name, filePath))
		result.Confidence = confidence.Deterministic(0)
		v.finish(ctx, span, result, start)
		return result, nil
	}

	result.Evidence = append(result.Evidence, fmt.Sprintf("%s %s declared at %s:%d", sym.Kind, name, filePath, sym.Line))
	ref := LineReference{FilePath: filePath, LineNumber: sym.Line, Content: sym.Name}
	verified, err := v.verifyRefs(ctx, claim, []LineReference{ref}, lines)
	if err != nil {
		grounding.SetSpanError(span, err)
		return nil, err
	}
	verified.Evidence = append(result.Evidence, verified.Evidence...)
	v.finish(ctx, span, verified, start)
	return verified, nil
}

// verifyRefs scores refs. lines caches split file contents across
// references; it may be nil.
func (v *Verifier) verifyRefs(ctx context.Context, claim string, refs []LineReference, lines map[string][]string) (*Result, error) {
	result := newResult(claim)
	if strings.TrimSpace(claim) == "" || len(refs) == 0 {
		result.Evidence = append(result.Evidence, "empty claim or reference list")
		result.Confidence = confidence.Absent(confidence.ReasonEmptyInput)
		return result, nil
	}
	if lines == nil {
		lines = make(map[string][]string)
	}

	inputs := make([]confidence.Input, 0, len(refs))
	var sum float64
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		check, issue, evidence, err := v.checkReference(ctx, ref, lines)
		if err != nil {
			return nil, err
		}
		result.References = append(result.References, check)
		if issue != nil {
			result.Issues = append(result.Issues, *issue)
		}
		if evidence != "" {
			result.Evidence = append(result.Evidence, evidence)
		}
		sum += check.Credit
		inputs = append(inputs, confidence.Input{
			Name:  fmt.Sprintf("%s:%d", ref.FilePath, ref.LineNumber),
			Value: check.Credit,
		})
	}

	result.Accuracy = confidence.Clamp(sum / float64(len(refs)))
	result.Verified = result.Accuracy > 0 && result.Accuracy >= v.config.VerifiedThreshold
	result.Confidence = confidence.Derived("mean(reference_credit)", result.Accuracy, inputs...)
	return result, nil
}

// checkReference scores one reference.
func (v *Verifier) checkReference(ctx context.Context, ref LineReference, cache map[string][]string) (ReferenceCheck, *Issue, string, error) {
	check := ReferenceCheck{Reference: ref}

	fileLines, issue, err := v.readLines(ctx, ref.FilePath, cache)
	if err != nil || issue != nil {
		if issue != nil {
			issue.LineNumber = ref.LineNumber
		}
		return check, issue, "", err
	}

	n := ref.LineNumber
	if n < 1 || n > len(fileLines) {
		return check, &Issue{
			Type:       IssueLineMismatch,
			FilePath:   ref.FilePath,
			LineNumber: n,
			Message:    fmt.Sprintf("line %d is outside %s (1-%d)", n, ref.FilePath, len(fileLines)),
		}, "", nil
	}

	needle := normalizeCode(ref.Content)
	if needle == "" {
		check.Credit = 1
		check.MatchedLine = n
		return check, nil, fmt.Sprintf("%s:%d exists", ref.FilePath, n), nil
	}
	if strings.Contains(normalizeCode(fileLines[n-1]), needle) {
		check.Credit = 1
		check.MatchedLine = n
		return check, nil, fmt.Sprintf("%s:%d: %s", ref.FilePath, n, strings.TrimSpace(fileLines[n-1])), nil
	}

	tol := v.config.LineTolerance
	if match, d := nearestMatch(fileLines, n, needle); match > 0 {
		check.MatchedLine = match
		check.Distance = d
		if d <= tol {
			check.Credit = 1 - 0.5*float64(d)/float64(tol)
			return check, &Issue{
				Type:       IssueContentChanged,
				FilePath:   ref.FilePath,
				LineNumber: n,
				Message:    fmt.Sprintf("content moved to line %d (%d lines away)", match, d),
			}, fmt.Sprintf("%s:%d: %s", ref.FilePath, match, strings.TrimSpace(fileLines[match-1])), nil
		}
		return check, &Issue{
			Type:       IssueLineMismatch,
			FilePath:   ref.FilePath,
			LineNumber: n,
			Message:    fmt.Sprintf("content found at line %d, %d lines away (tolerance %d)", match, d, tol),
		}, "", nil
	}

	if v.config.EnableFuzzyMatching {
		if best, sim := fuzzyMatch(fileLines, n, tol, ref.Content); sim >= 0.5 {
			check.Credit = 0.5 * sim
			check.MatchedLine = best
			if best > n {
				check.Distance = best - n
			} else {
				check.Distance = n - best
			}
		}
	}
	return check, &Issue{
		Type:       IssueContentChanged,
		FilePath:   ref.FilePath,
		LineNumber: n,
		Message:    fmt.Sprintf("line %d no longer contains %q", n, strings.TrimSpace(ref.Content)),
	}, "", nil
}

// readLines reads and splits path, memoizing in cache. A read failure is
// returned as a file_missing issue unless the context is done.
func (v *Verifier) readLines(ctx context.Context, path string, cache map[string][]string) ([]string, *Issue, error) {
	if l, ok := cache[path]; ok {
		return l, nil, nil
	}
	content, err := v.reader.ReadFile(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		v.logger.Debug("reference file unreadable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, &Issue{
			Type:     IssueFileMissing,
			FilePath: path,
			Message:  err.Error(),
		}, nil
	}
	l := splitLines(string(content))
	cache[path] = l
	return l, nil, nil
}

// symbolsFor asks the provider for declarations and falls back to the
// regex scanner on any provider failure other than cancellation.
func (v *Verifier) symbolsFor(ctx context.Context, path string, content []byte) ([]symbols.Symbol, error) {
	if v.symbols != nil {
		syms, err := v.symbols.Symbols(ctx, path, content)
		if err == nil {
			return syms, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, symbols.ErrUnsupportedLanguage) {
			v.logger.Debug("symbol provider failed, scanning declarations",
				slog.String("file", path),
				slog.String("error", err.Error()))
		}
	}
	return symbols.ScanDeclarations(content), nil
}

func (v *Verifier) finish(ctx context.Context, span trace.Span, result *Result, start time.Time) {
	v.stats.Record(result.Verified)
	for _, issue := range result.Issues {
		grounding.RecordIssue(ctx, grounding.ComponentASTVerifier, string(issue.Type))
	}
	grounding.RecordVerification(ctx, grounding.ComponentASTVerifier, result.Verified, result.Accuracy, time.Since(start))
	grounding.SetSpanResult(span, result.Verified, result.Accuracy)
}

func newResult(claim string) *Result {
	return &Result{
		Claim:      claim,
		References: []ReferenceCheck{},
		Issues:     []Issue{},
		Evidence:   []string{},
	}
}

// splitLines splits content into lines. A trailing newline does not
// produce an extra empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func normalizeCode(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// nearestMatch returns the 1-indexed line closest to n whose normalized
// text contains needle, and its distance. Ties prefer the earlier line.
func nearestMatch(lines []string, n int, needle string) (int, int) {
	for d := 1; d < len(lines); d++ {
		above, below := n-d, n+d
		if above >= 1 && strings.Contains(normalizeCode(lines[above-1]), needle) {
			return above, d
		}
		if below <= len(lines) && strings.Contains(normalizeCode(lines[below-1]), needle) {
			return below, d
		}
		if above < 1 && below > len(lines) {
			break
		}
	}
	return 0, 0
}

// fuzzyMatch returns the line within tol of n most similar to content.
func fuzzyMatch(lines []string, n, tol int, content string) (int, float64) {
	best, bestSim := 0, 0.0
	for i := n - tol; i <= n+tol; i++ {
		if i < 1 || i > len(lines) {
			continue
		}
		if sim := patterns.TokenSimilarity(lines[i-1], content); sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best, bestSim
}
