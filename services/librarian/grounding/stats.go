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

import "sync"

// Stats is a snapshot of a verifier's running counters.
type Stats struct {
	// Total is the number of verify calls.
	Total int `json:"total"`

	// Verified is the number of calls that produced a positive verdict.
	Verified int `json:"verified"`

	// Accuracy is Verified/Total, or 0 when Total is 0.
	Accuracy float64 `json:"accuracy"`
}

// Counter accumulates Stats for one verifier instance.
//
// Thread Safety: Safe for concurrent use. The zero value is ready to use.
type Counter struct {
	mu       sync.Mutex
	total    int
	verified int
}

// Record counts one verify call and returns the updated snapshot.
func (c *Counter) Record(verified bool) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if verified {
		c.verified++
	}
	return snapshot(c.total, c.verified)
}

// Snapshot returns the current counters.
func (c *Counter) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.total, c.verified)
}

// Reset zeroes the counters.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total, c.verified = 0, 0
}

func snapshot(total, verified int) Stats {
	s := Stats{Total: total, Verified: verified}
	if total > 0 {
		s.Accuracy = float64(verified) / float64(total)
	}
	return s
}
