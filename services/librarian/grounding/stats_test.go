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
	"testing"
	"time"
)

func TestCounter_ZeroState(t *testing.T) {
	var c Counter
	s := c.Snapshot()
	if s.Total != 0 || s.Verified != 0 {
		t.Errorf("expected zero counters, got %+v", s)
	}
	if s.Accuracy != 0 {
		t.Errorf("expected accuracy 0 for empty counter, got %v", s.Accuracy)
	}
}

func TestCounter_Record(t *testing.T) {
	var c Counter
	c.Record(true)
	c.Record(false)
	s := c.Record(true)

	if s.Total != 3 || s.Verified != 2 {
		t.Fatalf("unexpected counters %+v", s)
	}
	if s.Accuracy != 2.0/3.0 {
		t.Errorf("accuracy = %v, want %v", s.Accuracy, 2.0/3.0)
	}

	c.Reset()
	if got := c.Snapshot(); got.Total != 0 {
		t.Errorf("expected reset counters, got %+v", got)
	}
}

func TestCounter_Concurrent(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Record(i%2 == 0)
		}(i)
	}
	wg.Wait()

	s := c.Snapshot()
	if s.Total != 100 || s.Verified != 50 {
		t.Errorf("unexpected counters after concurrent records: %+v", s)
	}
}

func TestMetrics_NoPanicWithoutProvider(t *testing.T) {
	ctx := context.Background()
	RecordVerification(ctx, ComponentCitation, true, 0.9, time.Millisecond)
	RecordIssue(ctx, ComponentASTVerifier, "file_missing")
	RecordProviderFailure(ctx, ComponentConsistency)
	RecordContradiction(ctx, ComponentCitation, "extends")

	_, span := StartVerifySpan(ctx, ComponentCoVe, "Verify")
	SetSpanResult(span, true, 0.8)
	SetSpanError(span, nil)
	span.End()
}
