// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grounding is the root of the Librarian claim verification engine.
//
// The engine checks that generated answers about a codebase are true of
// the codebase. Four verifiers live in subpackages:
//
//   - astverify: cited line numbers, functions and classes exist where claimed
//   - citation: one claim is grounded in one source span
//   - cove: chain-of-verification self-check of a draft answer
//   - consistency: paraphrased questions receive compatible answers
//
// Shared rule tables live in patterns and the tagged confidence type in
// confidence. This package holds what all four have in common: the
// running statistics counter and the OpenTelemetry instruments.
//
// All matching is lexical, structural or positional. Nothing here
// performs learned language understanding.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package grounding
