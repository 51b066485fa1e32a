// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grounding

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Component names used as metric and span attributes.
const (
	ComponentASTVerifier = "ast_verifier"
	ComponentCitation    = "citation"
	ComponentCoVe        = "cove"
	ComponentConsistency = "consistency"
)

// Package-level tracer and meter for verification operations.
var (
	tracer = otel.Tracer("librarian.grounding")
	meter  = otel.Meter("librarian.grounding")
)

// Metrics for verification operations.
var (
	verificationsTotal     metric.Int64Counter
	verificationDuration   metric.Float64Histogram
	verificationScore      metric.Float64Histogram
	issuesTotal            metric.Int64Counter
	providerFailuresTotal  metric.Int64Counter
	contradictionsDetected metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		verificationsTotal, err = meter.Int64Counter(
			"librarian_verifications_total",
			metric.WithDescription("Total verify calls by component and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		verificationDuration, err = meter.Float64Histogram(
			"librarian_verification_duration_seconds",
			metric.WithDescription("Verify call duration by component"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		verificationScore, err = meter.Float64Histogram(
			"librarian_verification_score",
			metric.WithDescription("Distribution of accuracy, grounding and confidence scores"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		issuesTotal, err = meter.Int64Counter(
			"librarian_issues_total",
			metric.WithDescription("Typed issues recorded by component and type"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		providerFailuresTotal, err = meter.Int64Counter(
			"librarian_provider_failures_total",
			metric.WithDescription("Answer provider failures that caused a skipped variant"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		contradictionsDetected, err = meter.Int64Counter(
			"librarian_contradictions_total",
			metric.WithDescription("Contradictions and consistency violations by type"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// RecordVerification records one verify call.
//
// Inputs:
//   - ctx: Context for metric recording.
//   - component: One of the Component* names.
//   - verified: The verdict.
//   - score: Accuracy, grounding score or confidence in [0,1].
//   - duration: Wall time of the call.
//
// Thread Safety: Safe for concurrent use.
func RecordVerification(ctx context.Context, component string, verified bool, score float64, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	outcome := "unverified"
	if verified {
		outcome = "verified"
	}
	attrs := metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("outcome", outcome),
	)

	verificationsTotal.Add(ctx, 1, attrs)
	verificationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("component", component)))
	verificationScore.Record(ctx, score, metric.WithAttributes(attribute.String("component", component)))
}

// RecordIssue records one typed issue, such as file_missing.
func RecordIssue(ctx context.Context, component, issueType string) {
	if err := initMetrics(); err != nil {
		return
	}
	issuesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("type", issueType),
	))
}

// RecordProviderFailure records an answer provider failure.
func RecordProviderFailure(ctx context.Context, component string) {
	if err := initMetrics(); err != nil {
		return
	}
	providerFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
}

// RecordContradiction records a detected contradiction or violation.
func RecordContradiction(ctx context.Context, component, kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	contradictionsDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("kind", kind),
	))
}

// StartVerifySpan starts a span for a verify operation.
//
// Inputs:
//   - ctx: Parent context.
//   - component: One of the Component* names.
//   - operation: The operation name, e.g. "VerifyLineReferences".
//
// Outputs:
//   - context.Context: Context carrying the span.
//   - trace.Span: The span. Caller must call End().
func StartVerifySpan(ctx context.Context, component, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, component+"."+operation,
		trace.WithAttributes(attribute.String("librarian.component", component)),
	)
}

// SetSpanResult sets verdict attributes on a verify span.
func SetSpanResult(span trace.Span, verified bool, score float64) {
	span.SetAttributes(
		attribute.Bool("librarian.verified", verified),
		attribute.Float64("librarian.score", score),
	)
}

// SetSpanError marks the span as failed.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
