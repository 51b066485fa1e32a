// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package librarian exposes the grounding engine over HTTP.
//
// Service owns one instance of each verifier and the optional answer
// provider and audit log. Handlers decode requests, call Service, and
// map its errors to ErrorResponse codes.
package librarian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/librarian/services/librarian/audit"
	"github.com/AleutianAI/librarian/services/librarian/config"
	"github.com/AleutianAI/librarian/services/librarian/grounding"
	"github.com/AleutianAI/librarian/services/librarian/grounding/astverify"
	"github.com/AleutianAI/librarian/services/librarian/grounding/citation"
	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
	"github.com/AleutianAI/librarian/services/librarian/grounding/consistency"
	"github.com/AleutianAI/librarian/services/librarian/grounding/cove"
	"github.com/AleutianAI/librarian/services/librarian/provider"
	"github.com/AleutianAI/librarian/services/librarian/source"
	"github.com/AleutianAI/librarian/services/librarian/symbols"
)

// Option configures a Service.
type Option func(*Service)

// WithProvider sets the answer provider used by RunConsistency.
func WithProvider(p consistency.AnswerProvider) Option {
	return func(s *Service) {
		s.provider = p
	}
}

// WithAuditStore enables the verdict log.
func WithAuditStore(store *audit.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// Service runs verifications and records their verdicts.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	verifier    *astverify.Verifier
	citations   *citation.Pipeline
	cove        *cove.Engine
	consistency *consistency.Checker
	provider    consistency.AnswerProvider
	store       *audit.Store
	logger      *slog.Logger
}

// NewService creates a service from its verifiers.
func NewService(verifier *astverify.Verifier, pipeline *citation.Pipeline, engine *cove.Engine, checker *consistency.Checker, opts ...Option) *Service {
	s := &Service{
		verifier:    verifier,
		citations:   pipeline,
		cove:        engine,
		consistency: checker,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build wires a Service from configuration.
//
// Description:
//
//	Opens the source tree, the symbol parser and every verifier. The answer
//	provider and the audit log are created only when enabled.
//
// Outputs:
//
//	*Service - The service. Call Close when done.
//	error - Source, provider or audit initialization failure.
func Build(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fs, err := source.NewFileSystem(cfg.Source.Root, cfg.Source.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("open source root: %w", err)
	}
	parser := symbols.NewParser(
		symbols.WithCacheTTL(cfg.Source.ParseCacheTTL),
		symbols.WithMaxFileSize(cfg.Source.MaxFileSize),
		symbols.WithLogger(logger),
	)
	verifier, err := astverify.New(fs, cfg.ASTVerifierConfig(),
		astverify.WithSymbolProvider(parser),
		astverify.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}

	opts := []Option{WithLogger(logger)}
	if cfg.Provider.Enabled {
		p, err := provider.NewOpenAI(cfg.Provider.Config, provider.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create provider: %w", err)
		}
		opts = append(opts, WithProvider(p))
	}
	if cfg.Audit.Enabled {
		dbCfg := cfg.Audit.DBConfig
		dbCfg.Logger = logger
		store, err := audit.Open(dbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		opts = append(opts, WithAuditStore(store))
	}

	return NewService(
		verifier,
		citation.New(cfg.CitationConfig()),
		cove.New(cfg.CoVeConfig(), cove.WithLogger(logger)),
		consistency.New(cfg.ConsistencyConfig(), consistency.WithLogger(logger)),
		opts...,
	), nil
}

// Close releases the audit log.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request ID that audit records carry.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// VerifyLines checks file and line references against the source tree.
func (s *Service) VerifyLines(ctx context.Context, req VerifyLinesRequest) (*astverify.Result, error) {
	result, err := s.verifier.VerifyLineReferences(ctx, req.Claim, req.References)
	if err != nil {
		return nil, err
	}
	s.recordAST(ctx, "VerifyLineReferences", result)
	return result, nil
}

// VerifySymbol checks that a named function or class exists in a file.
func (s *Service) VerifySymbol(ctx context.Context, req VerifySymbolRequest) (*astverify.Result, error) {
	var (
		result *astverify.Result
		err    error
		op     string
	)
	switch req.Kind {
	case SymbolFunction:
		op = "VerifyFunctionClaim"
		result, err = s.verifier.VerifyFunctionClaim(ctx, req.Claim, req.Name, req.FilePath)
	case SymbolClass:
		op = "VerifyClassClaim"
		result, err = s.verifier.VerifyClassClaim(ctx, req.Claim, req.Name, req.FilePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbolKind, req.Kind)
	}
	if err != nil {
		return nil, err
	}
	s.recordAST(ctx, op, result)
	return result, nil
}

// VerifyAnswerCitations extracts "path:line" citations from prose and
// verifies each one.
func (s *Service) VerifyAnswerCitations(ctx context.Context, req VerifyAnswerRequest) (*astverify.Result, error) {
	result, err := s.verifier.VerifyAnswerCitations(ctx, req.Answer)
	if err != nil {
		return nil, err
	}
	s.recordAST(ctx, "VerifyAnswerCitations", result)
	return result, nil
}

func (s *Service) recordAST(ctx context.Context, op string, result *astverify.Result) {
	summary := fmt.Sprintf("%d references, %d issues", len(result.References), len(result.Issues))
	s.record(ctx, grounding.ComponentASTVerifier, op, result.Verified, result.Accuracy, &result.Confidence, summary, result)
}

// VerifyCitations grounds every citation against one source document.
func (s *Service) VerifyCitations(ctx context.Context, req VerifyCitationsRequest) (*VerifyCitationsResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := s.citations.VerifyBatch(ctx, req.Citations, req.SourceDocument)
	resp := &VerifyCitationsResponse{Results: results, Total: len(results)}
	for _, r := range results {
		if r.IsGrounded {
			resp.Grounded++
		}
	}

	var score float64
	if resp.Total > 0 {
		score = float64(resp.Grounded) / float64(resp.Total)
	}
	summary := fmt.Sprintf("%d/%d citations grounded", resp.Grounded, resp.Total)
	s.record(ctx, grounding.ComponentCitation, "VerifyBatch", resp.Grounded == resp.Total, score, nil, summary, results)
	return resp, nil
}

// VerifyCoVe runs chain-of-verification over a query and its context.
func (s *Service) VerifyCoVe(ctx context.Context, req CoVeRequest) (*cove.Result, error) {
	result, err := s.cove.Verify(ctx, cove.Input{
		Query:            req.Query,
		Context:          req.Context,
		BaselineResponse: req.BaselineResponse,
	})
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("%d questions, %d revised, %d hedged", len(result.Questions), result.Revised, result.Hedged)
	s.record(ctx, grounding.ComponentCoVe, "Verify", result.Verified, result.Confidence.Scalar(), &result.Confidence, summary, result)
	return result, nil
}

// GenerateVariants builds a query set for one question.
func (s *Service) GenerateVariants(req VariantsRequest) consistency.QuerySet {
	return s.consistency.GenerateVariants(req.Query, req.Topic)
}

// CheckConsistency compares answers that were collected elsewhere.
func (s *Service) CheckConsistency(ctx context.Context, req CheckRequest) *CheckResponse {
	v := s.consistency.CheckConsistency(req.Answers)
	resp := &CheckResponse{Consistent: v == nil, Violation: v}

	summary := fmt.Sprintf("%d answers consistent", len(req.Answers))
	if v != nil {
		summary = fmt.Sprintf("%s (%s)", v.ConflictType, v.Severity)
	}
	s.record(ctx, grounding.ComponentConsistency, "CheckConsistency", resp.Consistent, boolScore(resp.Consistent), nil, summary, resp)
	return resp
}

// RunConsistency answers every variant with the configured provider and
// checks each set.
//
// Outputs:
//
//	*RunResponse - The report and its summary.
//	error - ErrProviderUnavailable, or the context error.
func (s *Service) RunConsistency(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}
	report, err := s.consistency.RunConsistencyCheck(ctx, req.Sets, s.provider)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("%d/%d sets consistent, %d skipped variants",
		report.ConsistentSets, report.TotalSets, report.SkippedVariants)
	s.record(ctx, grounding.ComponentConsistency, "RunConsistencyCheck",
		len(report.Violations) == 0, report.ConsistencyRate, nil, summary, report)
	return &RunResponse{Report: report, Summary: report.Summary()}, nil
}

// Stats returns the running statistics of every verifier.
func (s *Service) Stats() StatsResponse {
	return StatsResponse{Components: map[string]grounding.Stats{
		s.verifier.Name():    s.verifier.Stats(),
		s.citations.Name():   s.citations.GroundingStats(),
		s.cove.Name():        s.cove.Stats(),
		s.consistency.Name(): s.consistency.Stats(),
	}}
}

// ResetStats zeroes every verifier's statistics.
func (s *Service) ResetStats() {
	s.verifier.ResetStats()
	s.citations.ResetStats()
	s.cove.ResetStats()
	s.consistency.ResetStats()
}

// Health reports which optional collaborators are configured.
func (s *Service) Health() HealthResponse {
	h := HealthResponse{Status: "ok", Audit: s.store != nil}
	if named, ok := s.provider.(interface{ Name() string }); ok {
		h.Provider = named.Name()
	}
	return h
}

// ListAudit returns audit records, newest first.
func (s *Service) ListAudit(ctx context.Context, q audit.Query) ([]audit.Record, error) {
	if s.store == nil {
		return nil, ErrAuditUnavailable
	}
	return s.store.List(ctx, q)
}

// GetAudit returns one audit record.
func (s *Service) GetAudit(ctx context.Context, id string) (audit.Record, error) {
	if s.store == nil {
		return audit.Record{}, ErrAuditUnavailable
	}
	return s.store.Get(ctx, id)
}

// record appends a verdict to the audit log. Failures are logged and never
// fail the verification.
func (s *Service) record(ctx context.Context, component, op string, verified bool, score float64, conf *confidence.Value, summary string, detail any) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		s.logger.Warn("audit detail not serializable",
			slog.String("component", component),
			slog.String("error", err.Error()))
		raw = nil
	}
	rec := audit.Record{
		RequestID:  requestIDFrom(ctx),
		Component:  component,
		Operation:  op,
		Verified:   verified,
		Score:      score,
		Confidence: conf,
		Summary:    summary,
		Detail:     raw,
	}
	// A canceled request still gets its verdict recorded.
	if _, err := s.store.Append(context.WithoutCancel(ctx), rec); err != nil && !errors.Is(err, audit.ErrClosed) {
		s.logger.Warn("audit append failed",
			slog.String("component", component),
			slog.String("operation", op),
			slog.String("error", err.Error()))
	}
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
